// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hashtable implements a thread-safe hash table whose buckets
// are red-black trees, giving stable ordering within a bucket and
// predictable worst-case lookup even under heavy collision.
package hashtable

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"code.hybscloud.com/buddyht/internal"
	"code.hybscloud.com/buddyht/rbtree"
)

// Mode selects the overwrite behavior of [Table.TestAndSet].
type Mode int

const (
	// Overwrite replaces the existing value, if any, with the new one.
	Overwrite Mode = iota
	// NoOverwrite fails with ErrKeyAlreadyExists if the key is present.
	NoOverwrite
	// TestOnly reports whether the key is present without modifying
	// the table.
	TestOnly
)

var (
	// ErrKeyAlreadyExists is returned by TestAndSet in NoOverwrite mode
	// when the key is already present.
	ErrKeyAlreadyExists = errors.New("hashtable: key already exists")
	// ErrNoSuchKey is returned by Get, Del, and TestAndSet in TestOnly
	// mode when the key is not present.
	ErrNoSuchKey = errors.New("hashtable: no such key")
)

type entry struct {
	key   []byte
	value []byte
}

// bucket is padded out to a full cache line so that adjacent buckets
// hammered by different goroutines don't share a cache line and cause
// false sharing on the mutex/tree fields.
type bucket struct {
	mu   sync.Mutex
	tree rbtree.Tree[*entry]
	ops  OpStats

	_ [internal.CacheLineSize]byte
}

// OpStats counts the outcomes of one kind of operation (set, get, del,
// test) against a table or a single bucket.
type OpStats struct {
	Success  uint64
	Failed   uint64
	NotFound uint64
}

// Stats is the aggregated, point-in-time snapshot returned by
// [Table.Stats]: entry count, per-operation outcome counters, and
// derived bucket population figures computed by a full bucket scan.
type Stats struct {
	EntryCount uint64

	Set OpStats
	Get OpStats
	Del OpStats
	Test OpStats

	MinBucketPopulation uint
	MaxBucketPopulation uint
	AvgBucketPopulation float64
}

// Table is a bucket array of red-black trees. The zero value is not
// usable; construct one with [New].
type Table struct {
	buckets []bucket
	hasher  Hasher
	log     log.Logger

	mu         sync.Mutex // guards the aggregated counters below
	entryCount uint64
	setStats   OpStats
	getStats   OpStats
	delStats   OpStats
	testStats  OpStats
}

// Option configures a Table constructed by [New].
type Option func(*Table)

// WithHasher overrides the default xxhash-based hasher.
func WithHasher(h Hasher) Option {
	return func(t *Table) { t.hasher = h }
}

// WithLogger attaches a structured logger used for Get and Del miss
// diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(t *Table) { t.log = logger }
}

// New returns a Table with numBuckets buckets. numBuckets must be
// positive.
func New(numBuckets int, opts ...Option) *Table {
	if numBuckets <= 0 {
		numBuckets = 1
	}
	t := &Table{
		buckets: make([]bucket, numBuckets),
		hasher:  DefaultHasher{},
		log:     log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) bucketFor(key []byte) *bucket {
	idx := t.hasher.BucketIndex(key, len(t.buckets))
	if idx < 0 || idx >= len(t.buckets) {
		idx = 0
	}
	return &t.buckets[idx]
}

// findInBucket scans b's tree for a node whose key equals key by RB
// value, falling through to the hasher's Equal predicate to resolve
// any RB-value collision, per the fallback every lookup path requires.
func (t *Table) findInBucket(b *bucket, key []byte) *rbtree.Node[*entry] {
	rbKey := t.hasher.RBValue(key)
	n := b.tree.FindLeft(rbKey)
	for n != nil && n.Key() == rbKey {
		if t.hasher.Equal(n.Value.key, key) {
			return n
		}
		n = rbtree.Increment(n)
	}
	return nil
}

// Set stores value under key, overwriting any existing value.
func (t *Table) Set(key, value []byte) {
	_ = t.testAndSet(key, value, Overwrite)
}

// TestAndSet stores value under key according to mode. See [Mode] for
// the semantics of each value.
func (t *Table) TestAndSet(key, value []byte, mode Mode) error {
	return t.testAndSet(key, value, mode)
}

func (t *Table) testAndSet(key, value []byte, mode Mode) error {
	b := t.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := t.findInBucket(b, key)

	switch mode {
	case TestOnly:
		if existing == nil {
			t.recordTest(b, false, true)
			return ErrNoSuchKey
		}
		t.recordTest(b, true, false)
		return nil

	case NoOverwrite:
		if existing != nil {
			t.recordSet(b, false, false)
			return ErrKeyAlreadyExists
		}

	case Overwrite:
		// falls through to the shared insert/replace logic below
	}

	if existing != nil {
		existing.Value.value = value
		t.recordSet(b, true, false)
		return nil
	}

	b.tree.Insert(t.hasher.RBValue(key), &entry{key: key, value: value})
	t.mu.Lock()
	t.entryCount++
	t.mu.Unlock()
	t.recordSet(b, true, false)
	return nil
}

// Get returns the value stored under key, or ErrNoSuchKey if absent.
func (t *Table) Get(key []byte) ([]byte, error) {
	b := t.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	n := t.findInBucket(b, key)
	if n == nil {
		t.recordGet(b, false, true)
		t.logMiss("get", key)
		return nil, ErrNoSuchKey
	}
	t.recordGet(b, true, false)
	return n.Value.value, nil
}

// Del removes key from the table, returning the key and value it was
// stored with so the caller can release them. It returns ErrNoSuchKey
// if key was not present.
func (t *Table) Del(key []byte) (oldKey, oldValue []byte, err error) {
	b := t.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	n := t.findInBucket(b, key)
	if n == nil {
		t.recordDel(b, false, true)
		t.logMiss("del", key)
		return nil, nil, ErrNoSuchKey
	}

	oldKey, oldValue = n.Value.key, n.Value.value
	b.tree.Unlink(n)

	t.mu.Lock()
	t.entryCount--
	t.mu.Unlock()
	t.recordDel(b, true, false)
	return oldKey, oldValue, nil
}

func (t *Table) recordSet(b *bucket, ok, notFound bool) {
	recordOutcome(&b.ops, ok, notFound)
	t.mu.Lock()
	recordOutcome(&t.setStats, ok, notFound)
	t.mu.Unlock()
}

func (t *Table) recordGet(b *bucket, ok, notFound bool) {
	recordOutcome(&b.ops, ok, notFound)
	t.mu.Lock()
	recordOutcome(&t.getStats, ok, notFound)
	t.mu.Unlock()
}

func (t *Table) recordDel(b *bucket, ok, notFound bool) {
	recordOutcome(&b.ops, ok, notFound)
	t.mu.Lock()
	recordOutcome(&t.delStats, ok, notFound)
	t.mu.Unlock()
}

func (t *Table) recordTest(b *bucket, ok, notFound bool) {
	recordOutcome(&b.ops, ok, notFound)
	t.mu.Lock()
	recordOutcome(&t.testStats, ok, notFound)
	t.mu.Unlock()
}

func recordOutcome(s *OpStats, ok, notFound bool) {
	switch {
	case ok:
		s.Success++
	case notFound:
		s.NotFound++
	default:
		s.Failed++
	}
}

// Stats returns an aggregated snapshot of the table's counters and
// bucket population, computed by scanning every bucket under its lock.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	s := Stats{
		EntryCount: t.entryCount,
		Set:        t.setStats,
		Get:        t.getStats,
		Del:        t.delStats,
		Test:       t.testStats,
	}
	t.mu.Unlock()

	var total uint
	s.MinBucketPopulation = ^uint(0)
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		n := b.tree.Len()
		b.mu.Unlock()

		if n < s.MinBucketPopulation {
			s.MinBucketPopulation = n
		}
		if n > s.MaxBucketPopulation {
			s.MaxBucketPopulation = n
		}
		total += n
	}
	if len(t.buckets) == 0 {
		s.MinBucketPopulation = 0
	} else {
		s.AvgBucketPopulation = float64(total) / float64(len(t.buckets))
	}
	return s
}

// BucketPopulations returns the current node count of every bucket, in
// bucket-index order.
func (t *Table) BucketPopulations() []uint {
	out := make([]uint, len(t.buckets))
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		out[i] = b.tree.Len()
		b.mu.Unlock()
	}
	return out
}

func (t *Table) logMiss(op string, key []byte) {
	_ = level.Debug(t.log).Log("msg", fmt.Sprintf("%s miss", op), "key_len", len(key))
}
