// Package codec maps protocol messages onto their one-byte wire form.
//
// The wire format is a single unsigned byte per message:
//
//	0 = GRANT   side=RIGHT
//	1 = GRANT   side=LEFT
//	2 = REQUEST side=RIGHT
//	3 = REQUEST side=LEFT
//
// Any other byte value is a protocol violation. The transport is
// assumed reliable, so an undecodable byte is a programming error and
// must abort the process, never be skipped.
package codec

import "fmt"

// Kind tells whether a message asks for a fork or hands one over.
type Kind uint8

const (
	Grant Kind = iota
	Request
)

func (k Kind) String() string {
	switch k {
	case Grant:
		return "GRANT"
	case Request:
		return "REQUEST"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Side names one of the sender's two forks. Every message carries the
// side from the sender's own perspective; the receiver mirrors it to
// find the local fork the message concerns.
type Side uint8

const (
	Right Side = iota
	Left
)

func (s Side) String() string {
	switch s {
	case Right:
		return "RIGHT"
	case Left:
		return "LEFT"
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// Mirror translates a side across a shared fork: the sender's left
// fork is the receiver's right fork and vice versa.
func (s Side) Mirror() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Message is one protocol message. It is constructed, sent, and
// consumed immediately on receipt, never stored.
type Message struct {
	Kind Kind
	Side Side
}

func (m Message) IsRequest() bool {
	return m.Kind == Request
}

func (m Message) IsGrant() bool {
	return m.Kind == Grant
}

func (m Message) String() string {
	return fmt.Sprintf("%v(%v)", m.Kind, m.Side)
}

// ProtocolError reports a byte outside the four defined wire values.
type ProtocolError struct {
	Byte byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("codec: undecodable wire byte 0x%02x", e.Byte)
}

// Encode returns the wire byte for the given kind and side.
func Encode(k Kind, s Side) byte {
	b := byte(s)
	if k == Request {
		b |= 2
	}
	return b
}

// Decode parses a wire byte back into a message. It is the inverse of
// Encode over exactly the four valid byte values.
func Decode(b byte) (Message, error) {
	switch b {
	case 0:
		return Message{Kind: Grant, Side: Right}, nil
	case 1:
		return Message{Kind: Grant, Side: Left}, nil
	case 2:
		return Message{Kind: Request, Side: Right}, nil
	case 3:
		return Message{Kind: Request, Side: Left}, nil
	}
	return Message{}, &ProtocolError{Byte: b}
}
