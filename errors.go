package epicsearch

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors. Typed errors below match them through errors.Is.
var (
	// ErrConfig is returned for malformed or inconsistent schema declarations.
	ErrConfig = errors.New("epicsearch: invalid configuration")

	// ErrLookup is returned when a referenced entity or field schema is absent
	// while traversing the graph.
	ErrLookup = errors.New("epicsearch: lookup failed")

	// ErrStore is returned for I/O failures against the backing document store.
	ErrStore = errors.New("epicsearch: store failure")

	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("epicsearch: document not found")

	// ErrInvalidValue is returned when a field value does not match its declaration.
	ErrInvalidValue = errors.New("epicsearch: invalid value")
)

// ConfigError reports a declaration that cannot be compiled. It is fatal:
// nothing partially resolved is ever returned alongside it.
type ConfigError struct {
	Entity  string // Entity type the declaration belongs to
	Field   string // Field name (if applicable)
	Path    string // Dependency path (if applicable)
	Message string
	Cause   error
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("epicsearch: config error")
	if e.Entity != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Entity)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (path %q)", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError returns a new ConfigError.
func NewConfigError(entity, field, message string) *ConfigError {
	return &ConfigError{Entity: entity, Field: field, Message: message}
}

// NewPathError returns a new ConfigError for a dependency path declaration.
func NewPathError(entity, field, path, message string) *ConfigError {
	return &ConfigError{Entity: entity, Field: field, Path: path, Message: message}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// LookupError reports an entity or field schema that is absent during
// traversal. It aborts the remainder of the operation's propagation.
type LookupError struct {
	Entity string // Entity type
	ID     string // Entity id (if applicable)
	Field  string // Field name (if applicable)
	Cause  error
}

// Error returns the error string.
func (e *LookupError) Error() string {
	var b strings.Builder
	b.WriteString("epicsearch: lookup ")
	b.WriteString(e.Entity)
	if e.ID != "" {
		fmt.Fprintf(&b, " (id=%s)", e.ID)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *LookupError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrLookup.
func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}

// NewLookupError returns a LookupError for a missing entity.
func NewLookupError(entity, id string, cause error) *LookupError {
	return &LookupError{Entity: entity, ID: id, Cause: cause}
}

// NewFieldLookupError returns a LookupError for a field absent from the schema.
func NewFieldLookupError(entity, field string) *LookupError {
	return &LookupError{Entity: entity, Field: field, Cause: errors.New("no such field in schema")}
}

// IsLookupError returns true if the error is a LookupError.
func IsLookupError(err error) bool {
	if err == nil {
		return false
	}
	var e *LookupError
	return errors.As(err, &e)
}

// IsNotFound returns true if the error reports a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError wraps an I/O failure against the backing store.
type StoreError struct {
	Op    string // Operation (e.g., "get", "mget", "put", "bulk", "search")
	Index string // Store index
	ID    string // Document id (if applicable)
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("epicsearch: store %s %s/%s: %v", e.Op, e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("epicsearch: store %s %s: %v", e.Op, e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrStore.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// NewStoreError returns a new StoreError.
func NewStoreError(op, index, id string, err error) *StoreError {
	return &StoreError{Op: op, Index: index, ID: id, Err: err}
}

// IsStoreError returns true if the error is a StoreError.
func IsStoreError(err error) bool {
	if err == nil {
		return false
	}
	var e *StoreError
	return errors.As(err, &e)
}

// ValidationError represents a value that does not fit its field declaration.
type ValidationError struct {
	Name string // Field name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("epicsearch: invalid value for field %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrInvalidValue.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidValue
}

// NewValidationError returns a new ValidationError for the given field.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "epicsearch: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("epicsearch: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
