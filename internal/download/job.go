package download

// State is the lifecycle position of a Job.
type State int

const (
	StatePending State = iota
	StateActive
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is a handle to one scheduled fetch.
type Job struct {
	url      string
	done     func(Result)
	s        *Scheduler
	finished chan struct{}

	// guarded by s.mu
	state State
}

// finishLocked moves j to a terminal state. Callers must hold s.mu.
func (j *Job) finishLocked(state State) {
	j.state = state
	close(j.finished)
}

// URL returns the URL the job fetches.
func (j *Job) URL() string { return j.url }

// State returns the job's current state.
func (j *Job) State() State {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	return j.state
}

// Done returns a channel closed once the job reaches a terminal state:
// succeeded, failed or cancelled, including cancellation by Close. It is
// closed before the callback is delivered.
func (j *Job) Done() <-chan struct{} { return j.finished }

// Cancel withdraws a pending job; its callback will never run. It returns
// false when the job was already admitted, finished or cancelled, in which
// case nothing changes.
func (j *Job) Cancel() bool {
	return j.s.cancelJob(j)
}
