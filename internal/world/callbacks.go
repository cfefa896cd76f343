package world

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

var ErrDuplicateCallback = errors.New("world: duplicate callback")

// TaskCallback runs when a task completes or aborts. It may edit stocks and
// entity state but must not spawn units or tasks.
type TaskCallback func(q *Query, t *Task, failed bool)

// Callbacks maps names to task callbacks. Tasks store the name so a saved
// task can be resumed after the callbacks are registered again.
type Callbacks struct {
	fns map[string]TaskCallback
}

func NewCallbacks() *Callbacks {
	return &Callbacks{fns: make(map[string]TaskCallback)}
}

func (c *Callbacks) Register(name string, fn TaskCallback) error {
	if _, dup := c.fns[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateCallback, name)
	}
	c.fns[name] = fn
	return nil
}

func (c *Callbacks) Has(name string) bool {
	_, ok := c.fns[name]
	return ok
}

// Names lists registered callbacks in sorted order.
func (c *Callbacks) Names() []string {
	out := make([]string, 0, len(c.fns))
	for n := range c.fns {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (c *Callbacks) invoke(q *Query, t *Task, failed bool) {
	if t.Callback == "" || t.Notified {
		return
	}
	t.Notified = true
	fn, ok := c.fns[t.Callback]
	if !ok {
		q.Log.Error("task callback not registered", zap.String("callback", t.Callback), zap.Stringer("task", t.ID))
		return
	}
	fn(q, t, failed)
}
