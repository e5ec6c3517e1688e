package dialect

import "github.com/liberaldart/epicsearch-sub000"

// KeyFunc extracts a key from a value.
type KeyFunc[K comparable, V any] func(V) K

// OrderByKeys reorders values to match the order of the requested keys.
// Missing values are zero values with an ErrNotFound error at their position.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = epicsearch.ErrNotFound
		}
	}
	return result, errs
}

// GroupByKey groups values by a key function.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// Chunk splits items into consecutive batches of at most size items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for size > 0 && len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n:n])
		items = items[n:]
	}
	return out
}

// AlignDocuments orders fetched documents to match ids. Documents absent
// from found are reported with Found false.
func AlignDocuments(index string, ids []string, found []*Document) []*Document {
	docs, errs := OrderByKeys(ids, found, func(d *Document) string { return d.ID })
	for i, err := range errs {
		if err != nil {
			docs[i] = &Document{Index: index, ID: ids[i]}
		}
	}
	return docs
}
