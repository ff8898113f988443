package dining

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chandylab/dinex"
	"github.com/chandylab/dinex/codec"
)

// Phase is the lifecycle state of one philosopher.
type Phase uint8

const (
	Thinking Phase = iota
	Hungry
	Eating
)

func (p Phase) String() string {
	switch p {
	case Thinking:
		return "THINKING"
	case Hungry:
		return "HUNGRY"
	case Eating:
		return "EATING"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Philosopher is the fork-ownership state machine of one process.
// It owns the two fork models and decides when to request, grant, or
// defer; all sends it wants are returned as Outbound effects. The
// pump is the only caller, so no internal locking is needed.
type Philosopher struct {
	rank  dinex.Rank
	n     int
	left  Fork // shared with rank+1
	right Fork // shared with rank-1
	phase Phase
}

// NewPhilosopher creates the state machine with the initial fork
// assignment: rank 0 owns both adjoining forks dirty, the highest
// rank owns neither, and every other rank owns dirty the fork of the
// pair in which it is the lower rank (its left-side fork). This gives
// every fork exactly one owner and an acyclic precedence order.
func NewPhilosopher(rank dinex.Rank, n int) *Philosopher {
	p := &Philosopher{
		rank:  rank,
		n:     n,
		phase: Thinking,
	}
	switch {
	case rank == 0:
		p.left.state = Dirty
		p.right.state = Dirty
	case int(rank) == n-1:
		p.left.state = Absent
		p.right.state = Absent
	default:
		p.left.state = Dirty
		p.right.state = Absent
	}
	return p
}

func (p *Philosopher) Rank() dinex.Rank {
	return p.rank
}

func (p *Philosopher) Phase() Phase {
	return p.phase
}

// Fork returns the fork model for the given local side.
func (p *Philosopher) Fork(s codec.Side) *Fork {
	if s == codec.Left {
		return &p.left
	}
	return &p.right
}

// Neighbor returns the rank sharing the fork on the given local side.
func (p *Philosopher) Neighbor(s codec.Side) dinex.Rank {
	if s == codec.Left {
		return p.rank.Left(p.n)
	}
	return p.rank.Right(p.n)
}

// BothHeld reports whether both forks are owned locally.
func (p *Philosopher) BothHeld() bool {
	return p.left.Held() && p.right.Held()
}

func (p *Philosopher) StartThinking() {
	p.phase = Thinking
}

func (p *Philosopher) StartHungry() {
	p.phase = Hungry
}

func (p *Philosopher) StartEating() {
	p.phase = Eating
}

// NextRequest picks the next fork to ask for, left checked before
// right as the fixed tie-break. ok is false once both forks are held.
func (p *Philosopher) NextRequest() (Outbound, bool) {
	for _, s := range [...]codec.Side{codec.Left, codec.Right} {
		if !p.Fork(s).Held() {
			return Outbound{
				To:  p.Neighbor(s),
				Msg: codec.Message{Kind: codec.Request, Side: s},
			}, true
		}
	}
	return Outbound{}, false
}

// Dispatch applies one incoming message and returns the sends it
// produced. Both the thinking and hungry loops route every message
// through here, so the handling never diverges between phases.
//
// The message names a side from the sender's perspective; mirroring
// it yields the local fork regardless of the sender rank, which keeps
// the two-process ring (coincident neighbor ranks) unambiguous.
func (p *Philosopher) Dispatch(m codec.Message, from dinex.Rank) ([]Outbound, error) {
	local := m.Side.Mirror()
	f := p.Fork(local)

	if m.IsGrant() {
		if f.Held() {
			// a grant we did not ask for; interleaved acquisition can
			// legitimately deliver one across a phase boundary, so a
			// duplicate is ignored rather than treated as fatal
			logrus.Warnf("philosopher %v ignoring %v from %v: %v fork already held", p.rank, m, from, local)
			return nil, nil
		}
		if err := f.Receive(); err != nil {
			return nil, fmt.Errorf("philosopher %v applying %v from %v: %w", p.rank, m, from, err)
		}
		logrus.Debugf("philosopher %v received %v fork from %v", p.rank, local, from)
		return nil, nil
	}

	// request for the local fork
	switch f.State() {
	case Dirty:
		if err := f.Give(); err != nil {
			return nil, fmt.Errorf("philosopher %v applying %v from %v: %w", p.rank, m, from, err)
		}
		logrus.Debugf("philosopher %v giving %v fork to %v", p.rank, local, from)
		return []Outbound{{
			To:  p.Neighbor(local),
			Msg: codec.Message{Kind: codec.Grant, Side: local},
		}}, nil
	case Clean:
		if err := f.NoteRequest(); err != nil {
			return nil, fmt.Errorf("philosopher %v applying %v from %v: %w", p.rank, m, from, err)
		}
		logrus.Debugf("philosopher %v deferring request for clean %v fork from %v", p.rank, local, from)
		return nil, nil
	default:
		// the neighbor asked for a fork we do not hold: with reliable
		// in-order delivery this is unreachable, so it is a logic
		// defect and must fail loudly
		return nil, fmt.Errorf("philosopher %v got %v from %v for the %v fork it does not hold", p.rank, m, from, local)
	}
}

// FinishEating dirties both forks and serves any deferred requests,
// returning the grants to send. Marking dirty only here is what bounds
// starvation: a process that has just eaten always yields on request.
func (p *Philosopher) FinishEating() ([]Outbound, error) {
	if err := p.left.MarkUsed(); err != nil {
		return nil, fmt.Errorf("philosopher %v finishing eating: %w", p.rank, err)
	}
	if err := p.right.MarkUsed(); err != nil {
		return nil, fmt.Errorf("philosopher %v finishing eating: %w", p.rank, err)
	}

	var outs []Outbound
	for _, s := range [...]codec.Side{codec.Left, codec.Right} {
		f := p.Fork(s)
		if !f.Pending() {
			continue
		}
		if err := f.Give(); err != nil {
			return nil, fmt.Errorf("philosopher %v serving deferred request: %w", p.rank, err)
		}
		logrus.Debugf("philosopher %v sending %v fork to waiting %v", p.rank, s, p.Neighbor(s))
		outs = append(outs, Outbound{
			To:  p.Neighbor(s),
			Msg: codec.Message{Kind: codec.Grant, Side: s},
		})
	}

	p.phase = Thinking
	return outs, nil
}
