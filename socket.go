package dinex

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Socket integrates the networking interface of one ring process.
// It is the only surface the protocol loop talks to: the sender rank
// travels inside the envelope, so the receiver never has to derive it
// from the connection.
type Socket interface {

	// Send puts the protocol byte on the wire towards the given rank
	Send(to Rank, payload byte)

	// Recv blocks for the next inbound envelope; ok is false once the
	// socket is closed
	Recv() (e Envelope, ok bool)

	// TryRecv is the non-blocking probe used by the thinking loop
	TryRecv() (e Envelope, ok bool)

	Close()
}

type socket struct {
	id        Rank
	addresses map[Rank]string
	nodes     map[Rank]Transport

	lock sync.RWMutex // locking map nodes
}

// NewSocket returns a Socket instance given self rank and the peer
// address list. It starts listening immediately.
func NewSocket(id Rank, addrs map[Rank]string) Socket {
	s := &socket{
		id:        id,
		addresses: addrs,
		nodes:     make(map[Rank]Transport),
	}

	s.nodes[id] = NewTransport(addrs[id])
	s.nodes[id].Listen()

	return s
}

func (s *socket) Send(to Rank, payload byte) {
	e := Envelope{From: s.id, Payload: payload}
	logrus.Debugf("node %v send %v to %v", s.id, e, to)

	s.lock.RLock()
	t, exists := s.nodes[to]
	s.lock.RUnlock()
	if !exists {
		address, ok := s.addresses[to]
		if !ok {
			logrus.Errorf("socket does not have address of node %v", to)
			return
		}
		t = NewTransport(address)
		// the peer process may still be starting up
		err := Retry(t.Dial, 100, time.Duration(50)*time.Millisecond)
		if err != nil {
			logrus.Errorf("failed to make connection to %v: %v", to, err)
			return
		}
		logrus.Debugf("node %v connected to %v over %s", s.id, to, t.Scheme())
		s.lock.Lock()
		s.nodes[to] = t
		s.lock.Unlock()
	}

	t.Send(e)
}

func (s *socket) Recv() (Envelope, bool) {
	s.lock.RLock()
	t := s.nodes[s.id]
	s.lock.RUnlock()
	return t.Recv()
}

func (s *socket) TryRecv() (Envelope, bool) {
	s.lock.RLock()
	t := s.nodes[s.id]
	s.lock.RUnlock()
	return t.TryRecv()
}

func (s *socket) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, t := range s.nodes {
		t.Close()
	}
}
