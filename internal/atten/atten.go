// Package atten controls the step-programmable RF attenuator inserted
// between the two devices under test to simulate path loss.
package atten

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
)

// Controller applies an attenuation setting to the RF path.
type Controller interface {
	SetAttenuation(db int) error
}

// RCDAT drives a Mini-Circuits RCDAT style step attenuator over its serial
// control port. The device accepts one SCPI-ish command per line and
// answers each with a single status line, "1" on success.
type RCDAT struct {
	rw io.ReadWriter
	c  io.Closer
	r  *bufio.Reader
}

// Open opens the attenuator's serial control port at path.
func Open(path string) (*RCDAT, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open attenuator %s: %w", path, err)
	}
	a := New(port)
	a.c = port
	return a, nil
}

// New wraps an already-open control channel. Used by Open and by tests.
func New(rw io.ReadWriter) *RCDAT {
	return &RCDAT{rw: rw, r: bufio.NewReader(rw)}
}

// SetAttenuation programs the requested attenuation in dB.
func (a *RCDAT) SetAttenuation(db int) error {
	cmd := fmt.Sprintf(":SETATT=%d.0;\r\n", db)
	if _, err := io.WriteString(a.rw, cmd); err != nil {
		return fmt.Errorf("set attenuation %d dB: %w", db, err)
	}
	line, err := a.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("set attenuation %d dB: read ack: %w", db, err)
	}
	if strings.TrimSpace(line) != "1" {
		return fmt.Errorf("set attenuation %d dB: unexpected ack %q", db, strings.TrimSpace(line))
	}
	return nil
}

// Close closes the control port when RCDAT owns it.
func (a *RCDAT) Close() error {
	if a.c == nil {
		return nil
	}
	return a.c.Close()
}
