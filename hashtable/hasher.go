// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hashtable

import "github.com/cespare/xxhash/v2"

// Hasher computes the values a Table needs to place and order a key:
// which bucket it lives in, and the 64-bit value used to order it
// within that bucket's tree. BucketIndex and RBValue must agree with
// Equal: keys that compare equal must hash to the same bucket and the
// same RB value.
type Hasher interface {
	BucketIndex(key []byte, numBuckets int) int
	RBValue(key []byte) uint64
	Equal(a, b []byte) bool
}

// DefaultHasher is an xxhash-based [Hasher] suitable for arbitrary byte
// slice keys. It is the hasher used when a [Table] is constructed
// without an explicit one.
type DefaultHasher struct{}

func (DefaultHasher) BucketIndex(key []byte, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}
	return int(xxhash.Sum64(key) % uint64(numBuckets))
}

func (DefaultHasher) RBValue(key []byte) uint64 {
	return xxhash.Sum64(key)
}

func (DefaultHasher) Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
