// Package annostorage implements the annotation storage contract shared
// by node annotations (item = graphannis.NodeID) and edge annotations
// (item = graphannis.Edge).
//
// A single generic AnnotationStorage[T] backs both specializations
// (node.go, edge.go), which add only the item-specific consistency
// check (the annis:node_name uniqueness rule) and on-disk subfolder
// name. Indexing is two maps:
//
//   - primary: item -> set of keys
//   - by-annotation: (ns, name, value) -> set of items, and
//     (name, value) -> set of items across namespaces
//
// Lookups never fail for missing items; they return the zero value.
// Besides I/O errors during save/load, the package returns regular
// expression compile errors from RegexAnnoSearch and
// graphannis.ErrAlreadyExists from NodeAnnotationStorage.Insert.
package annostorage

import (
	"regexp"
	"sort"
	"sync"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// ValueSearchKind discriminates the ValueSearch variant.
type ValueSearchKind int

const (
	ValueSearchAny ValueSearchKind = iota
	ValueSearchSome
	ValueSearchNotSome
)

// ValueSearch is the {Any, Some(value), NotSome(value)} variant used by
// ExactAnnoSearch.
type ValueSearch struct {
	Kind  ValueSearchKind
	Value string
}

// Any matches every value.
func Any() ValueSearch { return ValueSearch{Kind: ValueSearchAny} }

// Some matches exactly the given value.
func Some(v string) ValueSearch { return ValueSearch{Kind: ValueSearchSome, Value: v} }

// NotSome matches every value except the given one.
func NotSome(v string) ValueSearch { return ValueSearch{Kind: ValueSearchNotSome, Value: v} }

func (vs ValueSearch) matches(v string) bool {
	switch vs.Kind {
	case ValueSearchSome:
		return v == vs.Value
	case ValueSearchNotSome:
		return v != vs.Value
	default:
		return true
	}
}

// Match is one hit from ExactAnnoSearch/RegexAnnoSearch: the item and
// the qualified annotation key that matched (there can be more than one
// qualified name with the same local name if namespaces differ).
type Match[T any] struct {
	Item T
	Key  graphannis.AnnoKey
}

// keyStats holds the statistics snapshot for one annotation key.
type keyStats struct {
	DistinctValues int
	// Histogram buckets the distinct values into at most
	// histogramBuckets equi-width ranges (lexicographic on the value
	// string), used for monotonic selectivity estimates.
	Histogram        []string
	MostFrequentVal  string
	MostFrequentFreq int
}

const histogramBuckets = 250

// AnnotationStorage is the generic annotation-storage implementation,
// shared by node and edge annotation storage. T is the item
// type: graphannis.NodeID for nodes, graphannis.Edge for edges.
type AnnotationStorage[T comparable] struct {
	mu sync.RWMutex

	// primary index: item -> key -> value
	byItem map[T]map[graphannis.AnnoKey]string

	// by-annotation index: key -> value -> set of items
	byAnno map[graphannis.AnnoKey]map[string]map[T]struct{}
	// name -> value -> set of items, across all namespaces
	byName map[string]map[string]map[T]struct{}

	stats map[graphannis.AnnoKey]keyStats

	symbols *SymbolTable
}

// New creates an empty annotation storage. symbols may be nil, in
// which case the process-wide default table is used.
func New[T comparable](symbols *SymbolTable) *AnnotationStorage[T] {
	if symbols == nil {
		symbols = DefaultSymbolTable
	}
	return &AnnotationStorage[T]{
		byItem:  make(map[T]map[graphannis.AnnoKey]string),
		byAnno:  make(map[graphannis.AnnoKey]map[string]map[T]struct{}),
		byName:  make(map[string]map[string]map[T]struct{}),
		stats:   make(map[graphannis.AnnoKey]keyStats),
		symbols: symbols,
	}
}

// Insert adds or replaces the annotation for item. Replacing a value
// drops the old (key,value) entry from the by-annotation index before
// inserting the new one.
func (s *AnnotationStorage[T]) Insert(item T, anno graphannis.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols.Intern(anno.Key)

	keys, ok := s.byItem[item]
	if !ok {
		keys = make(map[graphannis.AnnoKey]string)
		s.byItem[item] = keys
	}
	if old, exists := keys[anno.Key]; exists {
		s.unindexLocked(item, anno.Key, old)
	}
	keys[anno.Key] = anno.Val
	s.indexLocked(item, anno.Key, anno.Val)
}

func (s *AnnotationStorage[T]) indexLocked(item T, key graphannis.AnnoKey, val string) {
	byVal, ok := s.byAnno[key]
	if !ok {
		byVal = make(map[string]map[T]struct{})
		s.byAnno[key] = byVal
	}
	items, ok := byVal[val]
	if !ok {
		items = make(map[T]struct{})
		byVal[val] = items
	}
	items[item] = struct{}{}

	byValName, ok := s.byName[key.Name]
	if !ok {
		byValName = make(map[string]map[T]struct{})
		s.byName[key.Name] = byValName
	}
	itemsName, ok := byValName[val]
	if !ok {
		itemsName = make(map[T]struct{})
		byValName[val] = itemsName
	}
	itemsName[item] = struct{}{}
}

func (s *AnnotationStorage[T]) unindexLocked(item T, key graphannis.AnnoKey, val string) {
	if byVal, ok := s.byAnno[key]; ok {
		if items, ok := byVal[val]; ok {
			delete(items, item)
			if len(items) == 0 {
				delete(byVal, val)
			}
		}
		if len(byVal) == 0 {
			delete(s.byAnno, key)
		}
	}
	if byValName, ok := s.byName[key.Name]; ok {
		if items, ok := byValName[val]; ok {
			delete(items, item)
			if len(items) == 0 {
				delete(byValName, val)
			}
		}
		if len(byValName) == 0 {
			delete(s.byName, key.Name)
		}
	}
}

// Remove deletes the annotation for the given key on item, returning
// the prior value if one existed.
func (s *AnnotationStorage[T]) Remove(item T, key graphannis.AnnoKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.byItem[item]
	if !ok {
		return "", false
	}
	val, ok := keys[key]
	if !ok {
		return "", false
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(s.byItem, item)
	}
	s.unindexLocked(item, key, val)
	return val, true
}

// Clear removes every item, key, and index entry.
func (s *AnnotationStorage[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byItem = make(map[T]map[graphannis.AnnoKey]string)
	s.byAnno = make(map[graphannis.AnnoKey]map[string]map[T]struct{})
	s.byName = make(map[string]map[string]map[T]struct{})
	s.stats = make(map[graphannis.AnnoKey]keyStats)
}

// GetAnnotationsForItem returns every annotation on item, or an empty
// slice if item has none.
func (s *AnnotationStorage[T]) GetAnnotationsForItem(item T) []graphannis.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.byItem[item]
	if !ok {
		return nil
	}
	out := make([]graphannis.Annotation, 0, len(keys))
	for k, v := range keys {
		out = append(out, graphannis.Annotation{Key: k, Val: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// GetValueForItem returns the value of key on item, if present.
func (s *AnnotationStorage[T]) GetValueForItem(item T, key graphannis.AnnoKey) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.byItem[item]
	if !ok {
		return "", false
	}
	v, ok := keys[key]
	return v, ok
}

// GetAllKeysForItem returns the annotation keys on item, filtered by
// optional namespace and name.
func (s *AnnotationStorage[T]) GetAllKeysForItem(item T, ns, name *string) []graphannis.AnnoKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.byItem[item]
	if !ok {
		return nil
	}
	out := make([]graphannis.AnnoKey, 0, len(keys))
	for k := range keys {
		if ns != nil && k.Ns != *ns {
			continue
		}
		if name != nil && k.Name != *name {
			continue
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// AnnotationKeys returns every distinct key present in this storage.
func (s *AnnotationStorage[T]) AnnotationKeys() []graphannis.AnnoKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]graphannis.AnnoKey, 0, len(s.byAnno))
	for k := range s.byAnno {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ExactAnnoSearch streams every item whose annotation matches ns/name
// and the given value constraint.
func (s *AnnotationStorage[T]) ExactAnnoSearch(ns *string, name string, value ValueSearch) []Match[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Match[T]
	visit := func(key graphannis.AnnoKey, byVal map[string]map[T]struct{}) {
		for val, items := range byVal {
			if !value.matches(val) {
				continue
			}
			for item := range items {
				results = append(results, Match[T]{Item: item, Key: key})
			}
		}
	}

	if ns != nil {
		key := graphannis.AnnoKey{Ns: *ns, Name: name}
		if byVal, ok := s.byAnno[key]; ok {
			visit(key, byVal)
		}
		return results
	}

	for key, byVal := range s.byAnno {
		if key.Name != name {
			continue
		}
		visit(key, byVal)
	}
	return results
}

// RegexAnnoSearch streams every item whose annotation value matches (or,
// if negated, does not match) pattern.
func (s *AnnotationStorage[T]) RegexAnnoSearch(ns *string, name, pattern string, negated bool) ([]Match[T], error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Match[T]
	visit := func(key graphannis.AnnoKey, byVal map[string]map[T]struct{}) {
		for val, items := range byVal {
			if re.MatchString(val) == negated {
				continue
			}
			for item := range items {
				results = append(results, Match[T]{Item: item, Key: key})
			}
		}
	}

	if ns != nil {
		key := graphannis.AnnoKey{Ns: *ns, Name: name}
		if byVal, ok := s.byAnno[key]; ok {
			visit(key, byVal)
		}
		return results, nil
	}
	for key, byVal := range s.byAnno {
		if key.Name != name {
			continue
		}
		visit(key, byVal)
	}
	return results, nil
}

// GetAllValues returns every distinct value stored for key. If
// mostFrequentFirst is true the values are ordered by descending
// frequency, using the cached statistics snapshot when available.
func (s *AnnotationStorage[T]) GetAllValues(key graphannis.AnnoKey, mostFrequentFirst bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byVal, ok := s.byAnno[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byVal))
	for val := range byVal {
		out = append(out, val)
	}
	if mostFrequentFirst {
		sort.Slice(out, func(i, j int) bool {
			if len(byVal[out[i]]) != len(byVal[out[j]]) {
				return len(byVal[out[i]]) > len(byVal[out[j]])
			}
			return out[i] < out[j]
		})
	} else {
		sort.Strings(out)
	}
	return out
}

// GetLargestItem returns the item with the greatest comparable value
// among those annotated, used by callers that derive new ids from the
// maximum seen item (e.g. assigning the next NodeID). The ordering is
// the one given by less.
func GetLargestItem[T comparable](s *AnnotationStorage[T], less func(a, b T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best T
	found := false
	for item := range s.byItem {
		if !found || less(best, item) {
			best = item
			found = true
		}
	}
	return best, found
}

// GuessMaxCount estimates the number of items matching an exact search
// over an inclusive value range [lower, upper]. The count is exact: it
// sums the matching items in the by-annotation index and does not
// consult the histogram computed by CalculateStatistics.
func (s *AnnotationStorage[T]) GuessMaxCount(ns *string, name, lower, upper string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	scan := func(key graphannis.AnnoKey) {
		byVal, ok := s.byAnno[key]
		if !ok {
			return
		}
		for val, items := range byVal {
			if val >= lower && val <= upper {
				count += len(items)
			}
		}
	}
	if ns != nil {
		scan(graphannis.AnnoKey{Ns: *ns, Name: name})
		return count
	}
	for key := range s.byAnno {
		if key.Name == name {
			scan(key)
		}
	}
	return count
}

// GuessMaxCountRegex estimates the number of items matching a regular
// expression search, proportional to the fraction of the bounded
// histogram samples that match.
func (s *AnnotationStorage[T]) GuessMaxCountRegex(ns *string, name, pattern string) int {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matchKey := func(key graphannis.AnnoKey) int {
		stat, ok := s.stats[key]
		if !ok || len(stat.Histogram) == 0 {
			byVal := s.byAnno[key]
			count := 0
			for val, items := range byVal {
				if re.MatchString(val) {
					count += len(items)
				}
			}
			return count
		}
		matched := 0
		for _, v := range stat.Histogram {
			if re.MatchString(v) {
				matched++
			}
		}
		total := 0
		for _, items := range s.byAnno[key] {
			total += len(items)
		}
		if len(stat.Histogram) == 0 {
			return 0
		}
		return matched * total / len(stat.Histogram)
	}

	if ns != nil {
		return matchKey(graphannis.AnnoKey{Ns: *ns, Name: name})
	}
	count := 0
	for key := range s.byAnno {
		if key.Name == name {
			count += matchKey(key)
		}
	}
	return count
}

// GuessMostFrequentValue returns the cached most-frequent value for the
// given annotation name (optionally namespace-qualified).
func (s *AnnotationStorage[T]) GuessMostFrequentValue(ns *string, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := ""
	bestFreq := -1
	found := false
	consider := func(key graphannis.AnnoKey) {
		stat, ok := s.stats[key]
		if !ok {
			return
		}
		if stat.MostFrequentFreq > bestFreq {
			best = stat.MostFrequentVal
			bestFreq = stat.MostFrequentFreq
			found = true
		}
	}
	if ns != nil {
		consider(graphannis.AnnoKey{Ns: *ns, Name: name})
		return best, found
	}
	for key := range s.stats {
		if key.Name == name {
			consider(key)
		}
	}
	return best, found
}

// CalculateStatistics (re-)computes the per-key distinct-value count,
// bounded histogram, and most-frequent value. Estimates derived from
// the resulting snapshot are monotonic in the value interval because
// the histogram samples are a sorted subset of the true value set.
func (s *AnnotationStorage[T]) CalculateStatistics() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[graphannis.AnnoKey]keyStats)
	for key, byVal := range s.byAnno {
		values := make([]string, 0, len(byVal))
		mostFreqVal := ""
		mostFreqCount := -1
		for val, items := range byVal {
			values = append(values, val)
			if len(items) > mostFreqCount {
				mostFreqCount = len(items)
				mostFreqVal = val
			}
		}
		sort.Strings(values)

		hist := values
		if len(hist) > histogramBuckets {
			sampled := make([]string, histogramBuckets)
			step := float64(len(values)) / float64(histogramBuckets)
			for i := range sampled {
				sampled[i] = values[int(float64(i)*step)]
			}
			hist = sampled
		}

		stats[key] = keyStats{
			DistinctValues:   len(values),
			Histogram:        hist,
			MostFrequentVal:  mostFreqVal,
			MostFrequentFreq: mostFreqCount,
		}
	}
	s.stats = stats
}

// NumberOfAnnotations returns the total count of (item,key) pairs
// stored.
func (s *AnnotationStorage[T]) NumberOfAnnotations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, keys := range s.byItem {
		n += len(keys)
	}
	return n
}
