package dining

import "fmt"

// ForkState is the local view of one shared fork.
type ForkState uint8

const (
	// Absent means the neighbor currently owns the fork.
	Absent ForkState = iota
	// Clean means the fork is owned locally and has not been used
	// since the last transfer; it may be withheld on request.
	Clean
	// Dirty means the fork is owned locally and was used since the
	// last transfer; it must be relinquished on request.
	Dirty
)

func (s ForkState) String() string {
	switch s {
	case Absent:
		return "ABSENT"
	case Clean:
		return "CLEAN"
	case Dirty:
		return "DIRTY"
	}
	return fmt.Sprintf("ForkState(%d)", uint8(s))
}

// Fork models one side's half of a resource shared with a neighbor.
// Exactly one side of a pair ever holds the fork; the other sees it
// as Absent.
type Fork struct {
	state          ForkState
	requestPending bool
}

func (f *Fork) State() ForkState {
	return f.state
}

// Held reports local ownership regardless of cleanliness.
func (f *Fork) Held() bool {
	return f.state != Absent
}

func (f *Fork) Pending() bool {
	return f.requestPending
}

// MarkUsed dirties a held fork at the end of an eating cycle.
func (f *Fork) MarkUsed() error {
	if f.state == Absent {
		return fmt.Errorf("dining: mark used on a fork that is not held")
	}
	f.state = Dirty
	return nil
}

// Give surrenders a dirty fork to the neighbor. Calling it on a clean
// or absent fork is an invariant violation; a request against a clean
// fork is deferred with NoteRequest instead.
func (f *Fork) Give() error {
	if f.state != Dirty {
		return fmt.Errorf("dining: give on a %v fork, only dirty forks are surrendered", f.state)
	}
	f.state = Absent
	f.requestPending = false
	return nil
}

// Receive acquires the fork from the neighbor via an incoming grant.
func (f *Fork) Receive() error {
	if f.state != Absent {
		return fmt.Errorf("dining: receive on a fork already held (%v)", f.state)
	}
	f.state = Clean
	return nil
}

// NoteRequest records a deferred request against a held fork.
func (f *Fork) NoteRequest() error {
	if f.state == Absent {
		return fmt.Errorf("dining: request noted against a fork that is not held")
	}
	f.requestPending = true
	return nil
}
