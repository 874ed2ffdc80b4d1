package driver

import "time"

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a driver phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent describes a timing phase boundary.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events emitted during Lower. It is called
// from the goroutine that called Lower.
type PhaseObserver func(PhaseEvent)

func observe(o PhaseObserver, name string, st PhaseStatus, elapsed time.Duration) {
	if o != nil {
		o(PhaseEvent{Name: name, Status: st, Elapsed: elapsed})
	}
}
