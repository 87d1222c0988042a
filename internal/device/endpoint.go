package device

import "errors"

// ErrWouldBlock is returned by PacketEndpoint.Read when no frame is
// currently available. The dispatcher treats this as a non-error
// signal to re-poll on the next turn.
var ErrWouldBlock = errors.New("device: endpoint would block")

// PacketEndpoint abstracts the USB CDC transport: read one inbound
// frame, write one outbound frame. It is the out-of-scope HAL/CDC
// collaborator the dispatcher consumes through this interface.
type PacketEndpoint interface {
	// Read returns the next available frame. It returns ErrWouldBlock
	// if no data is currently available, and protocol.ErrFrameTooLarge
	// if a single inbound frame exceeds the maximum accepted size.
	Read() ([]byte, error)

	// Write transmits one complete frame.
	Write(frame []byte) error
}

// StatusSink is an optional collaborator for a short human-readable
// status string (e.g. an OLED display). The device core never requires
// one; NoopStatusSink satisfies every call with no effect.
type StatusSink interface {
	// SetStatus displays msg, replacing any previously displayed text.
	SetStatus(msg string) error
	// Clear blanks the display.
	Clear() error
}

// NoopStatusSink is a StatusSink that does nothing, used whenever no
// display hardware is attached.
type NoopStatusSink struct{}

func (NoopStatusSink) SetStatus(string) error { return nil }
func (NoopStatusSink) Clear() error           { return nil }
