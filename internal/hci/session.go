package hci

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/banshee-data/dtmbench/internal/monitoring"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// Options configure a DTM session.
type Options struct {
	// Name labels the device in log narration, e.g. "master" or "slave".
	Name string

	// BaudRate for the HCI UART. Defaults to 115200.
	BaudRate int

	// TracePort is an optional firmware trace UART whose lines are streamed
	// to the log for the lifetime of the session.
	TracePort string
}

// Session is a single-device DTM command session. Commands are issued
// strictly one at a time; each send blocks until the matching command
// complete event arrives. There is no per-command timeout: a hung
// controller stalls the sweep, which matches the bench's manual-rerun
// usage model.
type Session struct {
	name  string
	port  SerialPorter
	r     *bufio.Reader
	trace SerialPorter
}

// CommandComplete is the decoded command complete event for one command.
type CommandComplete struct {
	OpCode uint16
	Status byte
	Return []byte
}

// TestEnd is the outcome of an EndTest command. Reported is false when the
// controller did not return a packet count, which the sweep treats as a
// transient failure rather than an error.
type TestEnd struct {
	ReceivedPackets int
	Reported        bool
}

// Open opens a DTM session on the serial port at path.
func Open(path string, opts Options) (*Session, error) {
	baud := opts.BaudRate
	if baud == 0 {
		baud = 115200
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := NewSession(port, opts.Name)

	if opts.TracePort != "" {
		tp, err := serial.Open(opts.TracePort, mode)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("open trace port %s: %w", opts.TracePort, err)
		}
		s.trace = tp
		go s.monitorTrace(tp)
	}
	return s, nil
}

// NewSession wraps an already-open port. Used by Open and by tests.
func NewSession(port SerialPorter, name string) *Session {
	return &Session{
		name: name,
		port: port,
		r:    bufio.NewReader(port),
	}
}

// monitorTrace streams firmware trace lines to the log until the trace
// port is closed.
func (s *Session) monitorTrace(tp io.Reader) {
	scan := bufio.NewScanner(tp)
	for scan.Scan() {
		monitoring.Logf("%s trace: %s", s.name, scan.Text())
	}
}

// Close closes the HCI port and any trace port.
func (s *Session) Close() error {
	if s.trace != nil {
		s.trace.Close()
	}
	return s.port.Close()
}

// Send writes one command packet and blocks until its command complete
// event is read back. Unrelated events arriving in between are logged and
// skipped.
func (s *Session) Send(cmd Command) (*CommandComplete, error) {
	params := cmd.Params()
	pkt := make([]byte, 0, 4+len(params))
	pkt = append(pkt, pktTypeCommand)
	pkt = binary.LittleEndian.AppendUint16(pkt, cmd.OpCode())
	pkt = append(pkt, byte(len(params)))
	pkt = append(pkt, params...)

	if _, err := s.port.Write(pkt); err != nil {
		return nil, fmt.Errorf("%s: write command 0x%04x: %w", s.name, cmd.OpCode(), err)
	}

	for {
		code, evt, err := s.readEvent()
		if err != nil {
			return nil, fmt.Errorf("%s: read event: %w", s.name, err)
		}
		if code != evtCommandComplete {
			monitoring.Logf("%s: ignoring event 0x%02x", s.name, code)
			continue
		}
		if len(evt) < 4 {
			return nil, fmt.Errorf("%s: short command complete (%d bytes)", s.name, len(evt))
		}
		op := binary.LittleEndian.Uint16(evt[1:3])
		if op != cmd.OpCode() {
			monitoring.Logf("%s: ignoring completion for 0x%04x", s.name, op)
			continue
		}
		return &CommandComplete{OpCode: op, Status: evt[3], Return: evt[4:]}, nil
	}
}

// readEvent reads one HCI event packet off the wire.
func (s *Session) readEvent() (code byte, params []byte, err error) {
	hdr := make([]byte, 3)
	if _, err := io.ReadFull(s.r, hdr); err != nil {
		return 0, nil, err
	}
	if hdr[0] != pktTypeEvent {
		return 0, nil, fmt.Errorf("unexpected packet type 0x%02x", hdr[0])
	}
	params = make([]byte, hdr[2])
	if _, err := io.ReadFull(s.r, params); err != nil {
		return 0, nil, err
	}
	return hdr[1], params, nil
}

// send issues cmd and converts a nonzero completion status into an error.
func (s *Session) send(cmd Command) error {
	evt, err := s.Send(cmd)
	if err != nil {
		return err
	}
	if evt.Status != 0 {
		return fmt.Errorf("%s: command 0x%04x returned status 0x%02x", s.name, cmd.OpCode(), evt.Status)
	}
	return nil
}

// Reset clears the controller state, ending any running test.
func (s *Session) Reset() error {
	return s.send(Reset{})
}

// SetPHY states the device's PHY preference.
func (s *Session) SetPHY(req SetDefaultPHY) error {
	return s.send(req)
}

// SetTxPower sets the transmit power.
func (s *Session) SetTxPower(req SetTxPower) error {
	return s.send(req)
}

// StartRx puts the device into receiver test mode.
func (s *Session) StartRx(req RxTest) error {
	return s.send(req)
}

// StartTx puts the device into transmitter test mode.
func (s *Session) StartTx(req TxTest) error {
	return s.send(req)
}

// EndTest stops the running test. A completion that carries no packet
// count, or reports a nonzero status, yields Reported == false; only a
// transport failure is returned as an error.
func (s *Session) EndTest() (TestEnd, error) {
	evt, err := s.Send(EndTest{})
	if err != nil {
		return TestEnd{}, err
	}
	if evt.Status != 0 || len(evt.Return) < 2 {
		return TestEnd{}, nil
	}
	return TestEnd{
		ReceivedPackets: int(binary.LittleEndian.Uint16(evt.Return[:2])),
		Reported:        true,
	}, nil
}
