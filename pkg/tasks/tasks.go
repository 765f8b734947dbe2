package tasks

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFrequency is the dispatch interval used when a task omits one.
const DefaultFrequency = 15 * time.Minute

// Task is one declarative unit of work from the task list. Tasks are created
// at load time and never mutated; only the due-tracking stamp changes.
type Task struct {
	Kind      string
	Frequency time.Duration
	Multipart bool
	Output    string
	Kwargs    map[string]string

	mu      sync.Mutex
	lastRun time.Time
}

// Due reports whether the task should be dispatched: true on first call and
// again once Frequency has elapsed since the previous true. The dispatch
// stamp advances on that edge.
func (t *Task) Due(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastRun.IsZero() || now.Sub(t.lastRun) >= t.Frequency {
		t.lastRun = now
		return true
	}
	return false
}

// entry is the YAML shape of one task under a query kind.
type entry struct {
	Frequency int            `yaml:"frequency"`
	Multipart *bool          `yaml:"multipart"`
	Output    string         `yaml:"output"`
	Kwargs    map[string]any `yaml:"kwargs"`
}

// Manager loads the task list and hands out the materialised tasks.
type Manager struct {
	tasks []*Task
}

// Load parses the task list document: a mapping from query kind to a list of
// task entries.
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task list: %w", err)
	}
	var raw map[string][]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse task list: %w", err)
	}

	m := &Manager{}
	for kind, entries := range raw {
		for _, e := range entries {
			frequency := DefaultFrequency
			if e.Frequency > 0 {
				frequency = time.Duration(e.Frequency) * time.Minute
			}
			multipart := true
			if e.Multipart != nil {
				multipart = *e.Multipart
			}
			kwargs := make(map[string]string, len(e.Kwargs))
			for k, v := range e.Kwargs {
				kwargs[k] = fmt.Sprint(v)
			}
			m.tasks = append(m.tasks, &Task{
				Kind:      kind,
				Frequency: frequency,
				Multipart: multipart,
				Output:    e.Output,
				Kwargs:    kwargs,
			})
		}
	}
	if len(m.tasks) == 0 {
		return nil, fmt.Errorf("task list %s declares no tasks", path)
	}
	return m, nil
}

// Tasks returns the loaded tasks.
func (m *Manager) Tasks() []*Task {
	return m.tasks
}
