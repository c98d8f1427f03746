package index

import (
	"fmt"
	"strconv"
)

// bucket is a value stored in a table. Each value knows how to release
// itself, so teardown never needs to be told which kind of index it is.
type bucket interface {
	release(stats *ReleaseStats)
}

// source is the field value a key was derived from. It is kept next to the
// bucket so two values that hash alike are told apart.
type source struct {
	text    string
	num     int64
	numeric bool
}

func textSource(s string) source { return source{text: s} }

func intSource(v int64) source { return source{num: v, numeric: true} }

func (s source) String() string {
	if s.numeric {
		return strconv.FormatInt(s.num, 10)
	}
	return s.text
}

type entry[V bucket] struct {
	src   source
	value V
}

// table is the bucket layer: 64-bit key to a single bucket value.
type table[V bucket] struct {
	entries  map[uint64]*entry[V]
	capacity int
}

func newTable[V bucket](capacity int) *table[V] {
	hint := 128
	if capacity > 0 && capacity < hint {
		hint = capacity
	}
	return &table[V]{
		entries:  make(map[uint64]*entry[V], hint),
		capacity: capacity,
	}
}

// get returns the bucket under key. A bucket held by a different source is
// reported as a collision.
func (t *table[V]) get(key uint64, src source) (V, bool, error) {
	var zero V
	e, ok := t.entries[key]
	if !ok {
		return zero, false, nil
	}
	if e.src != src {
		return zero, false, fmt.Errorf("%w: %q and %q share key %#x", ErrKeyCollision, src, e.src, key)
	}
	return e.value, true, nil
}

// getOrCreate returns the bucket under key, inserting create() when absent.
func (t *table[V]) getOrCreate(key uint64, src source, create func() V) (V, bool, error) {
	v, ok, err := t.get(key, src)
	if err != nil || ok {
		return v, false, err
	}
	if t.capacity > 0 && len(t.entries) >= t.capacity {
		var zero V
		return zero, false, fmt.Errorf("%w: %d keys", ErrCapacity, t.capacity)
	}
	v = create()
	t.entries[key] = &entry[V]{src: src, value: v}
	return v, true, nil
}

func (t *table[V]) len() int {
	return len(t.entries)
}

func (t *table[V]) release(stats *ReleaseStats) {
	for key, e := range t.entries {
		e.value.release(stats)
		stats.Buckets++
		delete(t.entries, key)
	}
}
