package task

// Tracker numbers tasks and notifies listeners when one ends. Index 0 is
// the first task a robot executes.
type Tracker struct {
	index     int
	kind      Kind
	startedAt uint64
	aborted   int
	completed int
	listeners []func(finished int)
}

// NewTracker starts task 0 of kind k at timestep ts.
func NewTracker(k Kind, ts uint64) *Tracker {
	return &Tracker{kind: k, startedAt: ts}
}

// OnFinished registers fn to run at every task boundary with the index of
// the task that just ended.
func (t *Tracker) OnFinished(fn func(finished int)) {
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) Index() int        { return t.index }
func (t *Tracker) Kind() Kind        { return t.kind }
func (t *Tracker) StartedAt() uint64 { return t.startedAt }
func (t *Tracker) Completed() int    { return t.completed }
func (t *Tracker) Aborted() int      { return t.aborted }

// Elapsed is the number of timesteps the current task has run.
func (t *Tracker) Elapsed(ts uint64) uint64 {
	if ts < t.startedAt {
		return 0
	}
	return ts - t.startedAt
}

// Finish ends the current task with status s (Done or AbortPending), runs
// the listeners, and starts the next task of kind next at timestep ts.
func (t *Tracker) Finish(s Status, next Kind, ts uint64) {
	if s == AbortPending {
		t.aborted++
	} else {
		t.completed++
	}
	finished := t.index
	for _, fn := range t.listeners {
		fn(finished)
	}
	t.index++
	t.kind = next
	t.startedAt = ts
}
