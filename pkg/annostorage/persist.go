package annostorage

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// diskAnno and diskMeta are the gob-friendly shapes the in-memory maps
// are flattened to/from. Flattening keeps the on-disk format stable
// even if the in-memory representation changes. The entries are written
// in map iteration order, so the order of entries in keys.gob is not
// deterministic and not sorted by key.
type diskAnno[T any] struct {
	Item T
	Key  graphannis.AnnoKey
	Val  string
}

type diskMeta struct {
	TotalAnnotations int
	Stats            map[graphannis.AnnoKey]keyStats
}

// SaveAnnotationsTo writes this storage to dir, creating it if
// necessary. The directory holds keys.gob (the flattened primary
// index) and meta.gob (counts + statistics snapshot); the by-annotation
// index is rebuilt from keys.gob on load rather than duplicated to
// disk.
func (s *AnnotationStorage[T]) SaveAnnotationsTo(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("annostorage: create dir: %w", err)
	}

	entries := make([]diskAnno[T], 0, s.numberOfAnnotationsLocked())
	for item, keys := range s.byItem {
		for key, val := range keys {
			entries = append(entries, diskAnno[T]{Item: item, Key: key, Val: val})
		}
	}

	if err := writeGob(filepath.Join(dir, "keys.gob"), entries); err != nil {
		return err
	}

	meta := diskMeta{TotalAnnotations: len(entries), Stats: s.stats}
	if err := writeGob(filepath.Join(dir, "meta.gob"), meta); err != nil {
		return err
	}
	return nil
}

// LoadAnnotationsFrom replaces this storage's contents with the
// serialization found in dir. Loading is not lazy: keys.gob and
// meta.gob are both decoded in full, and the primary and by-annotation
// indexes are rebuilt in memory before it returns.
func (s *AnnotationStorage[T]) LoadAnnotationsFrom(dir string) error {
	var entries []diskAnno[T]
	if err := readGob(filepath.Join(dir, "keys.gob"), &entries); err != nil {
		return fmt.Errorf("annostorage: load keys: %w", err)
	}
	var meta diskMeta
	if err := readGob(filepath.Join(dir, "meta.gob"), &meta); err != nil {
		return fmt.Errorf("annostorage: load meta: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byItem = make(map[T]map[graphannis.AnnoKey]string)
	s.byAnno = make(map[graphannis.AnnoKey]map[string]map[T]struct{})
	s.byName = make(map[string]map[string]map[T]struct{})
	for _, e := range entries {
		keys, ok := s.byItem[e.Item]
		if !ok {
			keys = make(map[graphannis.AnnoKey]string)
			s.byItem[e.Item] = keys
		}
		keys[e.Key] = e.Val
		s.indexLocked(e.Item, e.Key, e.Val)
		s.symbols.Intern(e.Key)
	}
	s.stats = meta.Stats
	if s.stats == nil {
		s.stats = make(map[graphannis.AnnoKey]keyStats)
	}
	return nil
}

func (s *AnnotationStorage[T]) numberOfAnnotationsLocked() int {
	n := 0
	for _, keys := range s.byItem {
		n += len(keys)
	}
	return n
}

func writeGob(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("annostorage: create %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("annostorage: encode %s: %w", path, err)
	}
	return nil
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
