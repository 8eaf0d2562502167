package streaming

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAckTimeout is returned when the server does not acknowledge in time.
	ErrAckTimeout = errors.New("ack timeout")
	// ErrClosed is returned when the connection closes while waiting for an ack.
	ErrClosed = errors.New("connection closed")
)

// ParseAck decodes raw as an acknowledgement. ok is false for anything else.
func ParseAck(raw []byte) (ack AckMessage, ok bool) {
	if err := json.Unmarshal(raw, &ack); err != nil {
		return AckMessage{}, false
	}
	return ack, ack.Type == TypeAck && ack.For != ""
}

// Acks hands acknowledgements from a reader to the caller awaiting them.
// Only one caller waits at a time.
type Acks struct {
	ch chan AckMessage
}

// NewAcks creates an Acks holding up to size undelivered acknowledgements.
func NewAcks(size int) *Acks {
	return &Acks{ch: make(chan AckMessage, size)}
}

// Deliver queues ack. It reports false when the queue is full and ack was dropped.
func (a *Acks) Deliver(ack AckMessage) bool {
	select {
	case a.ch <- ack:
		return true
	default:
		return false
	}
}

// Await blocks until msgType is acknowledged. Acks for other types are
// discarded. It fails after timeout or once done is closed.
func (a *Acks) Await(msgType string, timeout time.Duration, done <-chan struct{}) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-a.ch:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("%w: %s", ErrAckTimeout, msgType)
		case <-done:
			return fmt.Errorf("%w: waiting for ack of %s", ErrClosed, msgType)
		}
	}
}
