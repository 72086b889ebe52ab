// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

// CountLabel returns the number of blocks currently allocated from ctx
// that carry the given label tag. It only returns useful data on a
// Context created with [WithLeakTracking]; otherwise it always returns 0.
func (ctx *Context) CountLabel(tag string) int {
	n := 0
	for b := ctx.allocatedList; b != nil; b = b.nextAlive {
		if b.label.tag == tag {
			n++
		}
	}
	return n
}

// LabelSummary aggregates every live, labeled block across all contexts
// registered on rt into one row per distinct (file, fn, line, tag)
// callsite, in descending order of count. It only returns useful data
// for contexts created with [WithLeakTracking].
func (rt *Runtime) LabelSummary() []LabelStat {
	counts := make(map[label]int)

	rt.mu.Lock()
	for ctx := rt.head; ctx != nil; ctx = ctx.next {
		for b := ctx.allocatedList; b != nil; b = b.nextAlive {
			if b.label.isZero() {
				continue
			}
			counts[b.label]++
		}
	}
	rt.mu.Unlock()

	out := make([]LabelStat, 0, len(counts))
	for l, n := range counts {
		out = append(out, LabelStat{File: l.file, Func: l.fn, Line: l.line, Label: l.tag, Count: n})
	}
	sortLabelStats(out)
	return out
}

func sortLabelStats(stats []LabelStat) {
	for i := 1; i < len(stats); i++ {
		for j := i; j > 0 && stats[j].Count > stats[j-1].Count; j-- {
			stats[j], stats[j-1] = stats[j-1], stats[j]
		}
	}
}
