package sweep

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// ResultRow is one trial's recorded outcome.
type ResultRow struct {
	Params
	Atten     int
	PERMaster float64
	PERSlave  float64
}

// ResultWriter appends one line per trial to the results file. The format
// matches the bench's historical output so existing tooling keeps working:
// no header, attenuation written with a leading minus sign, fields in the
// order packetLen,numPkt,phy,atten,txPower,channel,perMaster,perSlave, and
// a blank line terminating the run.
type ResultWriter struct {
	w io.Writer
	c io.Closer
}

// OpenResults opens (or creates) the results file at path in append mode.
func OpenResults(path string) (*ResultWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &ResultWriter{w: f, c: f}, nil
}

// NewResultWriter wraps an arbitrary writer. Used by tests.
func NewResultWriter(w io.Writer) *ResultWriter {
	return &ResultWriter{w: w}
}

// Write appends one result row.
func (r *ResultWriter) Write(row ResultRow) error {
	_, err := fmt.Fprintf(r.w, "%d,%d,%d,-%d,%d,%d,%s,%s\n",
		row.PacketLength, row.NumPackets, row.PHY, row.Atten,
		row.TxPower, row.Channel,
		formatPER(row.PERMaster), formatPER(row.PERSlave))
	if err != nil {
		return fmt.Errorf("write result row: %w", err)
	}
	return nil
}

// Close writes the terminating blank line and closes the underlying file.
func (r *ResultWriter) Close() error {
	if _, err := io.WriteString(r.w, "\n"); err != nil {
		return fmt.Errorf("write trailing line: %w", err)
	}
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}

func formatPER(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
