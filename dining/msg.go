package dining

import (
	"fmt"

	"github.com/chandylab/dinex"
	"github.com/chandylab/dinex/codec"
)

// Outbound is a send effect produced by the state machine. The pump
// executes it; the state machine itself never touches the transport.
type Outbound struct {
	To  dinex.Rank
	Msg codec.Message
}

func (o Outbound) String() string {
	return fmt.Sprintf("%v -> %v", o.Msg, o.To)
}
