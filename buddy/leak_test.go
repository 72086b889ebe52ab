// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy_test

import (
	"testing"

	"code.hybscloud.com/buddyht/buddy"
)

func TestLeakTrackingCountLabel(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(buddy.WithLeakTracking(true))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	a, err := ctx.AllocAutolabel(32, "alloc_test.go", "TestLeakTrackingCountLabel", 1, "widget")
	if err != nil {
		t.Fatalf("AllocAutolabel: %v", err)
	}
	if _, err := ctx.AllocAutolabel(32, "alloc_test.go", "TestLeakTrackingCountLabel", 2, "widget"); err != nil {
		t.Fatalf("AllocAutolabel: %v", err)
	}
	if _, err := ctx.AllocAutolabel(32, "alloc_test.go", "TestLeakTrackingCountLabel", 3, "gizmo"); err != nil {
		t.Fatalf("AllocAutolabel: %v", err)
	}

	if n := ctx.CountLabel("widget"); n != 2 {
		t.Fatalf("CountLabel(widget) = %d, want 2", n)
	}
	if n := ctx.CountLabel("gizmo"); n != 1 {
		t.Fatalf("CountLabel(gizmo) = %d, want 1", n)
	}

	if err := ctx.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if n := ctx.CountLabel("widget"); n != 1 {
		t.Fatalf("CountLabel(widget) after free = %d, want 1", n)
	}
}

func TestLabelSummaryAggregatesAcrossContexts(t *testing.T) {
	rt := buddy.NewRuntime()
	c1, err := rt.Acquire(buddy.WithLeakTracking(true))
	if err != nil {
		t.Fatalf("Acquire c1: %v", err)
	}
	c2, err := rt.Acquire(buddy.WithLeakTracking(true))
	if err != nil {
		t.Fatalf("Acquire c2: %v", err)
	}

	if _, err := c1.AllocAutolabel(16, "f.go", "Fn", 10, "conn"); err != nil {
		t.Fatalf("AllocAutolabel: %v", err)
	}
	if _, err := c2.AllocAutolabel(16, "f.go", "Fn", 10, "conn"); err != nil {
		t.Fatalf("AllocAutolabel: %v", err)
	}

	summary := rt.LabelSummary()
	var found bool
	for _, s := range summary {
		if s.Label == "conn" && s.Line == 10 {
			found = true
			if s.Count != 2 {
				t.Fatalf("Count for conn@10 = %d, want 2", s.Count)
			}
		}
	}
	if !found {
		t.Fatal("expected a LabelSummary row for the conn label")
	}
}
