// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hashtable_test

import (
	"fmt"
	"testing"

	"code.hybscloud.com/buddyht/hashtable"
)

func TestSetGetDel(t *testing.T) {
	tbl := hashtable.New(16)

	tbl.Set([]byte("alpha"), []byte("1"))
	tbl.Set([]byte("beta"), []byte("2"))

	v, err := tbl.Get([]byte("alpha"))
	if err != nil {
		t.Fatalf("Get(alpha): %v", err)
	}
	if string(v) != "1" {
		t.Fatalf("Get(alpha) = %q, want %q", v, "1")
	}

	if _, err := tbl.Get([]byte("gamma")); err != hashtable.ErrNoSuchKey {
		t.Fatalf("Get(gamma) error = %v, want ErrNoSuchKey", err)
	}

	oldKey, oldVal, err := tbl.Del([]byte("alpha"))
	if err != nil {
		t.Fatalf("Del(alpha): %v", err)
	}
	if string(oldKey) != "alpha" || string(oldVal) != "1" {
		t.Fatalf("Del(alpha) = (%q, %q), want (alpha, 1)", oldKey, oldVal)
	}

	if _, err := tbl.Get([]byte("alpha")); err != hashtable.ErrNoSuchKey {
		t.Fatalf("Get after Del = %v, want ErrNoSuchKey", err)
	}
	if _, _, err := tbl.Del([]byte("alpha")); err != hashtable.ErrNoSuchKey {
		t.Fatalf("second Del = %v, want ErrNoSuchKey", err)
	}
}

func TestSetOverwritesExistingValue(t *testing.T) {
	tbl := hashtable.New(8)
	tbl.Set([]byte("k"), []byte("first"))
	tbl.Set([]byte("k"), []byte("second"))

	v, err := tbl.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "second" {
		t.Fatalf("Get(k) = %q, want %q", v, "second")
	}
	if tbl.Stats().EntryCount != 1 {
		t.Fatalf("EntryCount = %d, want 1 after overwrite", tbl.Stats().EntryCount)
	}
}

func TestTestAndSetModes(t *testing.T) {
	tbl := hashtable.New(8)

	if err := tbl.TestAndSet([]byte("k"), []byte("v1"), hashtable.TestOnly); err != hashtable.ErrNoSuchKey {
		t.Fatalf("TestOnly on absent key = %v, want ErrNoSuchKey", err)
	}

	if err := tbl.TestAndSet([]byte("k"), []byte("v1"), hashtable.NoOverwrite); err != nil {
		t.Fatalf("NoOverwrite first insert: %v", err)
	}
	if err := tbl.TestAndSet([]byte("k"), []byte("v2"), hashtable.NoOverwrite); err != hashtable.ErrKeyAlreadyExists {
		t.Fatalf("NoOverwrite on present key = %v, want ErrKeyAlreadyExists", err)
	}

	if err := tbl.TestAndSet([]byte("k"), []byte("v1"), hashtable.TestOnly); err != nil {
		t.Fatalf("TestOnly on present key: %v", err)
	}
	v, _ := tbl.Get([]byte("k"))
	if string(v) != "v1" {
		t.Fatalf("TestOnly must not modify existing value, got %q", v)
	}

	if err := tbl.TestAndSet([]byte("k"), []byte("v3"), hashtable.Overwrite); err != nil {
		t.Fatalf("Overwrite: %v", err)
	}
	v, _ = tbl.Get([]byte("k"))
	if string(v) != "v3" {
		t.Fatalf("Get after Overwrite = %q, want v3", v)
	}
}

func TestStatsBucketPopulation(t *testing.T) {
	tbl := hashtable.New(4)
	for i := 0; i < 40; i++ {
		tbl.Set([]byte(fmt.Sprintf("key-%d", i)), []byte("v"))
	}

	s := tbl.Stats()
	if s.EntryCount != 40 {
		t.Fatalf("EntryCount = %d, want 40", s.EntryCount)
	}
	if s.Set.Success != 40 {
		t.Fatalf("Set.Success = %d, want 40", s.Set.Success)
	}

	pops := tbl.BucketPopulations()
	var total uint
	for _, p := range pops {
		total += p
	}
	if total != 40 {
		t.Fatalf("sum of bucket populations = %d, want 40", total)
	}
	if s.MaxBucketPopulation == 0 {
		t.Fatal("MaxBucketPopulation should be > 0 with entries present")
	}
}

func TestDistinctKeysSameBucketStayDistinct(t *testing.T) {
	tbl := hashtable.New(1) // force every key into the same bucket
	for i := 0; i < 20; i++ {
		tbl.Set([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
	}
	for i := 0; i < 20; i++ {
		v, err := tbl.Get([]byte(fmt.Sprintf("k%d", i)))
		if err != nil {
			t.Fatalf("Get(k%d): %v", i, err)
		}
		if string(v) != fmt.Sprintf("v%d", i) {
			t.Fatalf("Get(k%d) = %q, want %q", i, v, fmt.Sprintf("v%d", i))
		}
	}
}
