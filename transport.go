package dinex

import (
	"bufio"
	"io"
	"net"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// Transport = transport layer between two specific peers.
// An instance either listens on its own address or is dialed towards a
// peer; the scheme of the address URL picks the implementation.
type Transport interface {
	// Scheme returns the transport scheme, chan or tcp
	Scheme() string

	// Send puts an envelope on the outbound connection
	Send(e Envelope)

	// Recv blocks for the next inbound envelope; ok is false once the
	// transport is closed
	Recv() (e Envelope, ok bool)

	// TryRecv is the non-blocking variant of Recv
	TryRecv() (e Envelope, ok bool)

	// Dial connects to the peer address
	Dial() error

	// Listen starts accepting inbound traffic on the address
	Listen()

	Close()
}

// NewTransport creates a transport object for the given address URL
func NewTransport(addr string) Transport {
	uri, err := url.Parse(addr)
	if err != nil {
		logrus.Fatalf("error parsing address %s: %v", addr, err)
	}

	transport := &transport{
		uri:   uri,
		inbox: make(chan Envelope, config.ChanBufferSize),
		done:  make(chan struct{}),
	}

	switch uri.Scheme {
	case "chan":
		return &chanTransport{transport: transport}
	case "tcp":
		return &tcpTransport{transport: transport}
	default:
		logrus.Fatalf("unknown transport scheme %s", uri.Scheme)
	}
	return nil
}

type transport struct {
	uri       *url.URL
	inbox     chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func (t *transport) Scheme() string {
	return t.uri.Scheme
}

func (t *transport) Recv() (Envelope, bool) {
	select {
	case e := <-t.inbox:
		return e, true
	case <-t.done:
		return Envelope{}, false
	}
}

func (t *transport) TryRecv() (Envelope, bool) {
	select {
	case e := <-t.inbox:
		return e, true
	default:
		return Envelope{}, false
	}
}

func (t *transport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
}

/******************************
/*     channel transport      *
/******************************/

// chans maps listening chan:// addresses to their inbox channels so
// that transports in the same process can reach each other.
var chans = struct {
	sync.RWMutex
	m map[string]chan Envelope
}{m: make(map[string]chan Envelope)}

type chanTransport struct {
	*transport
	listening bool
}

func (c *chanTransport) Listen() {
	chans.Lock()
	defer chans.Unlock()
	chans.m[c.uri.Host] = c.inbox
	c.listening = true
}

func (c *chanTransport) Dial() error {
	chans.RLock()
	defer chans.RUnlock()
	conn, ok := chans.m[c.uri.Host]
	if !ok {
		return ErrChanNotListening{Addr: c.uri.Host}
	}
	c.inbox = conn
	return nil
}

func (c *chanTransport) Send(e Envelope) {
	select {
	case c.inbox <- e:
	case <-c.done:
	}
}

func (c *chanTransport) Close() {
	if c.listening {
		chans.Lock()
		delete(chans.m, c.uri.Host)
		chans.Unlock()
	}
	c.transport.Close()
}

// ErrChanNotListening reports a dial to a chan address nobody listens on.
type ErrChanNotListening struct {
	Addr string
}

func (e ErrChanNotListening) Error() string {
	return "no chan transport is listening on " + e.Addr
}

/******************************
/*       tcp transport        *
/******************************/

type tcpTransport struct {
	*transport
	lock     sync.Mutex // serializes writers on the dialed connection
	conn     net.Conn
	writer   *bufio.Writer
	encoder  *msgpack.Encoder
	listener net.Listener
}

func (t *tcpTransport) Dial() error {
	conn, err := net.Dial("tcp", t.uri.Host)
	if err != nil {
		return err
	}
	t.conn = conn
	t.writer = bufio.NewWriter(conn)
	t.encoder = msgpack.NewEncoder(t.writer)
	return nil
}

func (t *tcpTransport) Send(e Envelope) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.encoder == nil {
		logrus.Errorf("tcp transport to %s used before Dial", t.uri.Host)
		return
	}
	if err := t.encoder.Encode(e); err != nil {
		logrus.Errorf("failed to encode envelope to %s: %v", t.uri.Host, err)
		return
	}
	if err := t.writer.Flush(); err != nil {
		logrus.Errorf("failed to send envelope to %s: %v", t.uri.Host, err)
	}
}

func (t *tcpTransport) Listen() {
	listener, err := net.Listen("tcp", ":"+t.uri.Port())
	if err != nil {
		logrus.Fatalf("failed to listen on %s: %v", t.uri.Host, err)
	}
	t.listener = listener

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-t.done:
					return
				default:
				}
				logrus.Errorf("failed to accept peer connection: %v", err)
				continue
			}
			go t.serve(conn)
		}
	}()
}

// serve decodes envelopes off one inbound peer connection. A single
// connection per ordered peer pair keeps delivery in send order.
func (t *tcpTransport) serve(conn net.Conn) {
	defer conn.Close()
	decoder := msgpack.NewDecoder(bufio.NewReader(conn))
	for {
		var e Envelope
		if err := decoder.Decode(&e); err != nil {
			if err != io.EOF {
				logrus.Errorf("failed to decode envelope from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		select {
		case t.inbox <- e:
		case <-t.done:
			return
		}
	}
}

func (t *tcpTransport) Close() {
	t.transport.Close()
	if t.listener != nil {
		t.listener.Close()
	}
	t.lock.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.lock.Unlock()
}
