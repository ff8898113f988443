package dining

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chandylab/dinex"
	"github.com/chandylab/dinex/codec"
)

// Replica ties one philosopher state machine to the ring transport
// and drives the protocol: it is the message pump, the single place
// where protocol state mutates. While thinking it polls the socket
// once per tick; while hungry it blocks on the socket, since progress
// then depends entirely on new input. Every inbound message in either
// phase goes through the same deliver path.
type Replica struct {
	dinex.Socket
	phil *Philosopher
	cfg  *dinex.Config
	rnd  *rand.Rand

	status  *dinex.StatusServer
	stopped int32

	lock      sync.Mutex // guards the published snapshot and counters only
	snap      dinex.Snapshot
	meals     uint64
	lastWait  time.Duration
	totalWait time.Duration
}

// NewReplica creates the replica for the given rank, starts listening
// for peers, and serves the status endpoint when one is configured.
func NewReplica(rank dinex.Rank) *Replica {
	cfg := dinex.GetConfig()
	r := &Replica{
		Socket: dinex.NewSocket(rank, cfg.Addrs),
		phil:   NewPhilosopher(rank, cfg.N()),
		cfg:    cfg,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano() + int64(rank))),
	}
	r.publish()

	if addr, ok := cfg.HTTPAddrs[rank]; ok && addr != "" {
		status, err := dinex.NewStatusServer(addr, r)
		if err != nil {
			logrus.Errorf("status server of philosopher %v: %v", rank, err)
			return r
		}
		r.status = status
		go func() {
			if err := status.ListenAndServe(); err != nil {
				logrus.Errorf("status server of philosopher %v: %v", rank, err)
			}
		}()
	}
	return r
}

// Run drives the thinking/hungry/eating cycle until Stop is called.
// The returned error is always a protocol or invariant violation;
// both are fatal for the process.
func (r *Replica) Run() error {
	n := r.cfg.N()
	logrus.Infof("philosopher %v starting: n=%d left neighbor=%v right neighbor=%v",
		r.phil.Rank(), n, r.phil.Rank().Left(n), r.phil.Rank().Right(n))

	for !r.stopping() {
		if err := r.think(); err != nil {
			return err
		}
		if r.stopping() {
			break
		}
		if err := r.acquire(); err != nil {
			return err
		}
		if r.stopping() {
			break
		}
		r.eat()
		if err := r.release(); err != nil {
			return err
		}
	}

	logrus.Infof("philosopher %v stopped", r.phil.Rank())
	return nil
}

// Stop makes Run return at the next phase boundary, unblocks a
// pending receive by closing the socket, and stops the status server.
func (r *Replica) Stop() {
	atomic.StoreInt32(&r.stopped, 1)
	r.Socket.Close()
	if r.status != nil {
		if err := r.status.Shutdown(); err != nil {
			logrus.Errorf("stopping status server of philosopher %v: %v", r.phil.Rank(), err)
		}
	}
}

func (r *Replica) stopping() bool {
	return atomic.LoadInt32(&r.stopped) == 1
}

// think runs the randomized thinking phase. The philosopher is not
// seeking forks but still answers peers without delay: one
// non-blocking probe per tick, dispatched through the same path as
// hungry traffic.
func (r *Replica) think() error {
	r.phil.StartThinking()
	r.publish()

	d := dinex.RandBetween(r.rnd, r.cfg.ThinkMin(), r.cfg.ThinkMax())
	logrus.Debugf("philosopher %v thinking for %v", r.phil.Rank(), d)

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if r.stopping() {
			return nil
		}
		if e, ok := r.TryRecv(); ok {
			if err := r.deliver(e); err != nil {
				return err
			}
		}
		time.Sleep(r.cfg.Tick())
	}
	return nil
}

// acquire runs the hungry phase: request each absent fork (left
// first), then block on the socket servicing everything that arrives
// until the awaited fork is held. The phase ends with both forks
// owned and clean.
func (r *Replica) acquire() error {
	r.phil.StartHungry()
	r.publish()
	logrus.Debugf("philosopher %v is hungry", r.phil.Rank())

	start := time.Now()
	for !r.phil.BothHeld() {
		if r.stopping() {
			return nil
		}
		out, ok := r.phil.NextRequest()
		if !ok {
			break
		}
		logrus.Debugf("philosopher %v requesting %v fork from %v", r.phil.Rank(), out.Msg.Side, out.To)
		r.send(out)

		awaited := out.Msg.Side
		for !r.phil.Fork(awaited).Held() {
			e, ok := r.Recv()
			if !ok {
				return nil // socket closed while stopping
			}
			if err := r.deliver(e); err != nil {
				return err
			}
		}
	}

	wait := time.Since(start)
	r.lock.Lock()
	r.lastWait = wait
	r.totalWait += wait
	r.lock.Unlock()
	r.publish()
	return nil
}

func (r *Replica) eat() {
	r.phil.StartEating()
	r.publish()
	logrus.Infof("philosopher %v is eating", r.phil.Rank())
	time.Sleep(r.cfg.Eat())

	r.lock.Lock()
	r.meals++
	r.lock.Unlock()
}

// release dirties both forks and immediately serves any requests that
// were deferred while eating.
func (r *Replica) release() error {
	outs, err := r.phil.FinishEating()
	if err != nil {
		return err
	}
	for _, o := range outs {
		r.send(o)
	}
	r.publish()
	return nil
}

// deliver decodes one envelope and dispatches it to the state
// machine, executing whatever sends the dispatch produced. A decode
// failure or an invariant violation aborts the run.
func (r *Replica) deliver(e dinex.Envelope) error {
	m, err := codec.Decode(e.Payload)
	if err != nil {
		return err
	}
	outs, err := r.phil.Dispatch(m, e.From)
	if err != nil {
		return err
	}
	for _, o := range outs {
		r.send(o)
	}
	r.publish()
	return nil
}

func (r *Replica) send(o Outbound) {
	r.Socket.Send(o.To, codec.Encode(o.Msg.Kind, o.Msg.Side))
}

// Meals returns how many times this philosopher has eaten.
func (r *Replica) Meals() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.meals
}

// Snapshot returns a consistent copy of the observable state; the
// status endpoint serves it as JSON.
func (r *Replica) Snapshot() dinex.Snapshot {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.snap
}

// publish refreshes the snapshot read by Snapshot. Only the pump
// goroutine calls it, so protocol state needs no locking here.
func (r *Replica) publish() {
	snap := dinex.Snapshot{
		Rank:         int(r.phil.Rank()),
		Phase:        r.phil.Phase().String(),
		LeftFork:     r.phil.Fork(codec.Left).State().String(),
		RightFork:    r.phil.Fork(codec.Right).State().String(),
		LeftPending:  r.phil.Fork(codec.Left).Pending(),
		RightPending: r.phil.Fork(codec.Right).Pending(),
	}
	r.lock.Lock()
	snap.Meals = r.meals
	snap.LastWaitMs = r.lastWait.Milliseconds()
	snap.TotalWaitMs = r.totalWait.Milliseconds()
	r.snap = snap
	r.lock.Unlock()
}
