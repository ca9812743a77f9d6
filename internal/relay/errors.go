package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrBusClosed is returned by Subscription.Recv once the bus has been
	// closed and every retained chunk has been delivered.
	ErrBusClosed = errors.New("fanout bus closed")

	// ErrFunnelClosed is returned by Funnel.Submit after the consumer is gone.
	ErrFunnelClosed = errors.New("write funnel closed")

	// ErrUpstreamGone ends a session whose serial link has terminated.
	ErrUpstreamGone = errors.New("serial link gone")
)

// LagError reports that a subscriber fell behind and Missed chunks were
// discarded to make room for newer ones.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d chunk(s) dropped", e.Missed)
}
