// Package runtime is Quartz's stack VM: the dispatch loop, call frames,
// the mark-sweep collector, and the Robin-Hood hash table backing globals
// and string interning, grounded on qcc/vm.c, qcc/vm_memory.c, and
// qcc/table.c.
package runtime

import "quartz.dev/qcc/pkg/value"

const loadFactor = 0.75

// entry is one slot of Table: a key string, its value, and its probe
// distance from the ideal bucket. distance == -1 marks a tombstone left by
// Delete, per qcc/table.c's IS_TOMBSTONE.
type entry struct {
	key      *value.String
	val      value.Value
	distance int
}

func (e *entry) empty() bool { return e.key == nil && e.distance != -1 }
func (e *entry) tomb() bool  { return e.distance == -1 }

// Table is the open-addressed, Robin-Hood-hashed map used for both the
// global variable table and the string-intern table, matching qcc/table.c
// exactly (same load factor, same insertion-time interchange rule, same
// capacity-doubling growth).
type Table struct {
	entries     []entry
	size        int
	maxDistance int
}

func NewTable() *Table { return &Table{} }

func (t *Table) shouldGrow() bool {
	return float64(t.size+1) > float64(len(t.entries))*loadFactor
}

func growCapacity(cap int) int {
	if cap < 8 {
		return 8
	}
	return cap * 2
}

// Set inserts or overwrites key's value.
func (t *Table) Set(key *value.String, val value.Value) {
	if t.shouldGrow() {
		t.adjustCapacity(growCapacity(len(t.entries)))
	}
	t.insert(key, val)
}

func (t *Table) insert(key *value.String, val value.Value) {
	capacity := uint32(len(t.entries))
	index := key.Hash & (capacity - 1)
	cur := entry{key: key, val: val, distance: 0}

	start := index
	for {
		slot := &t.entries[index]
		switch {
		case slot.empty() || slot.tomb():
			*slot = cur
			t.size++
			return
		case slot.key == cur.key || (slot.key != nil && slot.key.Bytes == cur.key.Bytes):
			*slot = cur
			return
		case slot.distance < cur.distance:
			*slot, cur = cur, *slot
		}
		cur.distance++
		if cur.distance > t.maxDistance {
			t.maxDistance = cur.distance
		}
		index = (index + 1) & (capacity - 1)
		if index == start {
			panic("runtime: table probe wrapped around — capacity invariant violated")
		}
	}
}

func (t *Table) adjustCapacity(capacity int) {
	old := t.entries
	t.entries = make([]entry, capacity)
	for i := range t.entries {
		t.entries[i] = entry{}
	}
	t.size = 0
	t.maxDistance = 0

	for _, e := range old {
		if e.key != nil {
			t.insert(e.key, e.val)
		}
	}
}

func (t *Table) findEntry(key *value.String) *entry {
	if t.size == 0 || len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := key.Hash & (capacity - 1)
	for dist := 0; dist <= t.maxDistance; dist++ {
		slot := &t.entries[index]
		if slot.empty() {
			return nil
		}
		if !slot.tomb() && slot.key.Bytes == key.Bytes {
			return slot
		}
		index = (index + 1) & (capacity - 1)
	}
	return nil
}

// Get reports the value bound to key, or value.Nil + false if unbound.
func (t *Table) Get(key *value.String) (value.Value, bool) {
	e := t.findEntry(key)
	if e == nil {
		return value.Value{}, false
	}
	return e.val, true
}

// Delete tombstones key's entry, keeping later probes for colliding keys
// intact (qcc/table.c's table_delete).
func (t *Table) Delete(key *value.String) bool {
	e := t.findEntry(key)
	if e == nil {
		return false
	}
	e.key = nil
	e.val = value.Value{}
	e.distance = -1
	t.size--
	return true
}

// FindString looks up an interned string by content+hash without
// allocating a *value.String first, for use by the interning path
// (qcc/table.c's table_find_string).
func (t *Table) FindString(chars string, hash uint32) *value.String {
	if t.size == 0 || len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash & (capacity - 1)
	for dist := 0; dist <= t.maxDistance; dist++ {
		slot := &t.entries[index]
		if slot.empty() {
			return nil
		}
		if !slot.tomb() && slot.key.Hash == hash && slot.key.Bytes == chars {
			return slot.key
		}
		index = (index + 1) & (capacity - 1)
	}
	return nil
}

// Each calls fn once per live (non-tombstone, non-empty) entry; used by the
// GC's mark_globals root and by debugging dumps.
func (t *Table) Each(fn func(key *value.String, val value.Value)) {
	for _, e := range t.entries {
		if e.key != nil && !e.tomb() {
			fn(e.key, e.val)
		}
	}
}

// fnv1a32 is the hash function both the intern table and every *value.String
// produced at runtime use (qcc/string.c hashes identically).
func fnv1a32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
