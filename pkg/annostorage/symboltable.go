package annostorage

import (
	"sync"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// SymbolTable interns annotation keys to small integer symbols for the
// lifetime of the process, so that result groups can be compared and
// deduplicated without string work.
type SymbolTable struct {
	mu      sync.RWMutex
	bySym   []graphannis.AnnoKey
	byKey   map[graphannis.AnnoKey]uint32
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byKey: make(map[graphannis.AnnoKey]uint32)}
}

// DefaultSymbolTable is the process-lifetime table used whenever a
// storage is created without an explicit one.
var DefaultSymbolTable = NewSymbolTable()

// Intern returns the symbol for key, assigning a new one if this is the
// first time key has been seen.
func (t *SymbolTable) Intern(key graphannis.AnnoKey) uint32 {
	t.mu.RLock()
	if sym, ok := t.byKey[key]; ok {
		t.mu.RUnlock()
		return sym
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if sym, ok := t.byKey[key]; ok {
		return sym
	}
	sym := uint32(len(t.bySym))
	t.bySym = append(t.bySym, key)
	t.byKey[key] = sym
	return sym
}

// Lookup resolves a symbol back to its key, if it was ever interned.
func (t *SymbolTable) Lookup(sym uint32) (graphannis.AnnoKey, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(sym) >= len(t.bySym) {
		return graphannis.AnnoKey{}, false
	}
	return t.bySym[sym], true
}
