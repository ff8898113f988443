package dinex

import "fmt"

// Envelope is the unit a transport carries between two peers: the
// single protocol byte plus the sender's rank. The payload byte is
// opaque at this layer; the codec package owns its interpretation.
type Envelope struct {
	From    Rank `msgpack:"f"`
	Payload byte `msgpack:"p"`
}

func (e Envelope) String() string {
	return fmt.Sprintf("Envelope {from=%v payload=0x%02x}", e.From, e.Payload)
}
