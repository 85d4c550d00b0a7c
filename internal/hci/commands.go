// Package hci drives a BLE controller in Direct Test Mode over a UART HCI
// transport. Only the command set a DTM PER sweep consumes is implemented:
// reset, PHY preference, TX power, receiver test, counted transmitter test,
// and test end.
package hci

import "encoding/binary"

// HCI packet types [Vol 4, Part A, 2].
const (
	pktTypeCommand byte = 0x01
	pktTypeEvent   byte = 0x04
)

// Event codes.
const (
	evtCommandComplete byte = 0x0E
)

// Opcode group fields.
const (
	ogfController uint16 = 0x03
	ogfLE         uint16 = 0x08
	ogfVendor     uint16 = 0x3F
)

// Opcodes consumed by the bench. The transmitter test and TX power commands
// are vendor extensions of the Packetcraft-derived stacks on MAX32 and
// Nordic parts; the rest are standard.
const (
	opReset         = ogfController<<10 | 0x0003
	opSetDefaultPHY = ogfLE<<10 | 0x0031
	opEndTest       = ogfLE<<10 | 0x001F
	opRxTest        = ogfLE<<10 | 0x0033 // LE enhanced receiver test
	opSetTxPower    = ogfVendor<<10 | 0x03F5
	opTxTest        = ogfVendor<<10 | 0x03DC
)

// Command is a marshalable HCI command.
type Command interface {
	// OpCode returns the 16-bit command opcode (OGF<<10 | OCF).
	OpCode() uint16

	// Params returns the marshaled parameter block.
	Params() []byte
}

// Reset clears all controller state, ending any running test. No parameters.
type Reset struct{}

func (Reset) OpCode() uint16 { return opReset }
func (Reset) Params() []byte { return nil }

// SetDefaultPHY states the PHY preference used for subsequent activity.
// PHY follows the DTM numbering: 1 = 1M, 2 = 2M, 3 = coded S=8, 4 = coded S=2.
type SetDefaultPHY struct {
	PHY int
}

func (SetDefaultPHY) OpCode() uint16 { return opSetDefaultPHY }

func (c SetDefaultPHY) Params() []byte {
	bits := phyBits(c.PHY)
	// all_phys = 0: honour both TX and RX preferences.
	return []byte{0x00, bits, bits}
}

// phyBits maps a DTM PHY number onto the LE PHY preference bitmask. Both
// coded variants select the coded PHY bit; the S=2/S=8 split is carried by
// the test commands themselves.
func phyBits(phy int) byte {
	switch phy {
	case 2:
		return 0x02
	case 3, 4:
		return 0x04
	default:
		return 0x01
	}
}

// SetTxPower sets the transmit power in dBm for the given connection handle.
// Handle 0 addresses the default (test) context, which is all DTM uses.
type SetTxPower struct {
	Power  int // dBm, two's complement on the wire
	Handle uint16
}

func (SetTxPower) OpCode() uint16 { return opSetTxPower }

func (c SetTxPower) Params() []byte {
	p := binary.LittleEndian.AppendUint16(nil, c.Handle)
	return append(p, byte(int8(c.Power)))
}

// RxTest starts an LE enhanced receiver test on the given RF channel
// (0-39). ModulationIndex 0 selects the standard modulation index.
type RxTest struct {
	Channel         int
	PHY             int
	ModulationIndex byte
}

func (RxTest) OpCode() uint16 { return opRxTest }

func (c RxTest) Params() []byte {
	return []byte{byte(c.Channel), byte(c.PHY), c.ModulationIndex}
}

// TxTest starts a vendor transmitter test that stops on its own after
// NumPackets packets rather than transmitting until EndTest. Payload 0 is
// the PRBS9 reference pattern.
type TxTest struct {
	Channel      int
	PHY          int
	PacketLength int
	NumPackets   int
	Payload      byte
}

func (TxTest) OpCode() uint16 { return opTxTest }

func (c TxTest) Params() []byte {
	p := []byte{byte(c.Channel), byte(c.PacketLength), c.Payload, byte(c.PHY)}
	return binary.LittleEndian.AppendUint16(p, uint16(c.NumPackets))
}

// EndTest stops the running test. The command complete return parameters
// carry the number of packets received (zero for a transmitter).
type EndTest struct{}

func (EndTest) OpCode() uint16 { return opEndTest }
func (EndTest) Params() []byte { return nil }
