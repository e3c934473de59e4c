package store

import (
	"context"
	"testing"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    Order
		wantErr bool
	}{
		{in: "", want: LIFO},
		{in: "lifo", want: LIFO},
		{in: " FIFO ", want: FIFO},
		{in: "random", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrder(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOrder(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// testPendingSet runs the PendingSet contract against set.
func testPendingSet(t *testing.T, set PendingSet) {
	t.Helper()
	ctx := context.Background()

	for _, task := range []fssp.TaskID{"T1", "T2", "T3"} {
		added, err := set.Add(ctx, task)
		if err != nil {
			t.Fatalf("Add(%s) error = %v", task, err)
		}
		if !added {
			t.Errorf("Add(%s) = false, want true", task)
		}
	}

	added, err := set.Add(ctx, "T2")
	if err != nil {
		t.Fatalf("Add(T2) error = %v", err)
	}
	if added {
		t.Error("duplicate Add(T2) = true, want false")
	}

	if n, _ := set.Len(ctx); n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}

	drained, err := set.Drain(ctx, LIFO)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	want := []fssp.TaskID{"T3", "T2", "T1"}
	if len(drained) != len(want) {
		t.Fatalf("Drain() = %v, want %v", drained, want)
	}
	for i := range want {
		if drained[i] != want[i] {
			t.Errorf("Drain()[%d] = %s, want %s", i, drained[i], want[i])
		}
	}

	if n, _ := set.Len(ctx); n != 0 {
		t.Errorf("Len() after drain = %d, want 0", n)
	}

	// Drained tasks may be added again, e.g. when requeued for another sweep.
	if added, _ := set.Add(ctx, "T1"); !added {
		t.Error("Add(T1) after drain = false, want true")
	}
	set.Add(ctx, "T4")

	drained, err = set.Drain(ctx, FIFO)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(drained) != 2 || drained[0] != "T1" || drained[1] != "T4" {
		t.Errorf("Drain(FIFO) = %v, want [T1 T4]", drained)
	}

	drained, err = set.Drain(ctx, LIFO)
	if err != nil {
		t.Fatalf("Drain() on empty set error = %v", err)
	}
	if len(drained) != 0 {
		t.Errorf("Drain() on empty set = %v", drained)
	}
}

func TestMemory(t *testing.T) {
	testPendingSet(t, NewMemory())
}
