// Package transport adapts a byte-stream serial link into the
// device.PacketEndpoint contract. Real USB CDC hardware delivers
// discrete packet boundaries for free; a host-side serial link over
// tarm/serial does not, so this package imposes a 4-byte little-endian
// length prefix on top of the raw byte stream to recover frame
// boundaries, shared by both the firmware-loop binary and the
// host-side protocol peer.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/noviinc/novisigner/internal/device"
	"github.com/noviinc/novisigner/internal/protocol"
)

const headerLen = 4

// SerialEndpoint implements device.PacketEndpoint over an
// io.ReadWriter, typically a *serial.Port opened via OpenSerialPort.
type SerialEndpoint struct {
	rw io.ReadWriter
}

// NewSerialEndpoint wraps an already-open serial link.
func NewSerialEndpoint(rw io.ReadWriter) *SerialEndpoint {
	return &SerialEndpoint{rw: rw}
}

// OpenSerialPort opens a tarm/serial port at the given device path and
// baud rate, with the given read timeout, matching the host-tool
// documentation note of 1,000,000 baud / 2-second timeout.
func OpenSerialPort(name string, baud int, readTimeout time.Duration) (*serial.Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", name, err)
	}
	return port, nil
}

// Read reads one length-prefixed frame. A header read that returns 0
// bytes (the configured read timeout elapsing with nothing available)
// is reported as device.ErrWouldBlock; a decoded length exceeding
// protocol.MaxRequestSize is reported as protocol.ErrFrameTooLarge.
func (e *SerialEndpoint) Read() ([]byte, error) {
	var header [headerLen]byte
	n, err := io.ReadFull(e.rw, header[:1])
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("transport: read header: %w", err)
		}
		return nil, device.ErrWouldBlock
	}
	if _, err := io.ReadFull(e.rw, header[1:]); err != nil {
		return nil, fmt.Errorf("transport: read header: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > protocol.MaxRequestSize {
		discard := make([]byte, length)
		_, _ = io.ReadFull(e.rw, discard)
		return nil, protocol.ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(e.rw, payload); err != nil {
		return nil, fmt.Errorf("transport: read payload: %w", err)
	}
	return payload, nil
}

// Write sends frame prefixed with its 4-byte little-endian length.
func (e *SerialEndpoint) Write(frame []byte) error {
	var header [headerLen]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(frame)))
	if _, err := e.rw.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write header: %w", err)
	}
	if _, err := e.rw.Write(frame); err != nil {
		return fmt.Errorf("transport: write payload: %w", err)
	}
	return nil
}
