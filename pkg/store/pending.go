// Package store holds the pending set: task ids accepted by the search
// service that still await a status check. A task id appears at most once and
// leaves the set when a poll sweep drains it.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

var pendingTasks = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "fssp_pending_tasks",
	Help: "Task ids awaiting a status check",
})

// Order is the iteration order of a drain.
type Order string

const (
	// LIFO visits the most recently submitted task first.
	LIFO Order = "lifo"

	// FIFO visits tasks in submission order.
	FIFO Order = "fifo"
)

// ParseOrder converts a configuration string to an Order.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case LIFO, "":
		return LIFO, nil
	case FIFO:
		return FIFO, nil
	default:
		return "", fmt.Errorf("unknown pending order %q (want lifo or fifo)", s)
	}
}

// PendingSet is the collection of outstanding task ids.
type PendingSet interface {
	// Add appends task. It returns false if task is already pending.
	Add(ctx context.Context, task fssp.TaskID) (bool, error)

	// Drain removes and returns every pending task in the given order.
	Drain(ctx context.Context, order Order) ([]fssp.TaskID, error)

	// Len returns the number of pending tasks.
	Len(ctx context.Context) (int, error)
}

// Memory is an in-process PendingSet.
type Memory struct {
	mu      sync.Mutex
	tasks   []fssp.TaskID
	members map[fssp.TaskID]struct{}
}

// NewMemory creates an empty in-memory pending set.
func NewMemory() *Memory {
	return &Memory{members: make(map[fssp.TaskID]struct{})}
}

// Add implements PendingSet.
func (m *Memory) Add(_ context.Context, task fssp.TaskID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[task]; ok {
		return false, nil
	}
	m.members[task] = struct{}{}
	m.tasks = append(m.tasks, task)
	pendingTasks.Inc()
	return true, nil
}

// Drain implements PendingSet.
func (m *Memory) Drain(_ context.Context, order Order) ([]fssp.TaskID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.tasks
	m.tasks = nil
	m.members = make(map[fssp.TaskID]struct{})
	pendingTasks.Sub(float64(len(out)))

	if order == LIFO {
		reverse(out)
	}
	return out, nil
}

// Len implements PendingSet.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks), nil
}

func reverse(tasks []fssp.TaskID) {
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}
}
