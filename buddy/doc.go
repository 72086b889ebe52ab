// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package buddy implements a per-owner buddy-system memory allocator.
//
// Each owner (typically one goroutine pinned to the data structures it
// mutates) acquires a [Context] from a shared [Runtime] and allocates from
// it with [Context.Alloc]/[Context.Free]/[Context.Realloc]/[Context.Calloc].
// Blocks are served from power-of-two "standard pages" split and merged by
// the buddy algorithm; requests larger than a page are served as "extra"
// blocks directly from the Go allocator when extra_alloc is enabled.
//
// # Ownership and cross-owner free
//
// A Context's free index is only ever touched by the goroutine that holds
// it — there is no locking on the fast alloc/free path. Freeing a block
// from a goroutine that does not own it enqueues the block on the owning
// Context's to-be-freed list instead of touching its free index directly;
// the owner drains that list on its next Alloc call, or during Destroy.
//
// # Leak tracking
//
// When a Context is created with [WithLeakTracking], every live block is
// threaded through a live-block list so [Runtime.LabelSummary] and
// [Context.CountLabel] can report on it. Only blocks allocated through
// [Context.AllocAutolabel] carry a callsite (file/func/line) and label;
// the plain allocation methods record none.
package buddy
