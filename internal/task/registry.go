package task

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps each region to its single active task.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*GenTask
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*GenTask),
	}
}

// Register records t as the active task for region. It fails with
// ErrAlreadyRunning if the region already has one.
func (r *Registry) Register(region string, t *GenTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[region]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, region)
	}
	r.tasks[region] = t
	return nil
}

// Unregister removes the entry for region, if any.
func (r *Registry) Unregister(region string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, region)
}

// Get returns the active task for region.
func (r *Registry) Get(region string) (*GenTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[region]
	return t, ok
}

// List returns the active tasks ordered by region.
func (r *Registry) List() []*GenTask {
	r.mu.RLock()
	tasks := make([]*GenTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Region() < tasks[j].Region()
	})
	return tasks
}

// Len returns the number of active tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
