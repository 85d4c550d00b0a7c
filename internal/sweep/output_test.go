package sweep

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultWriterRowFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewResultWriter(&buf)

	require.NoError(t, w.Write(ResultRow{
		Params:    Params{PacketLength: 250, NumPackets: 5000, PHY: 1, TxPower: 0, Channel: 0},
		Atten:     20,
		PERMaster: 0,
		PERSlave:  0,
	}))
	assert.Equal(t, "250,5000,1,-20,0,0,0,0\n", buf.String())
}

func TestResultWriterFractionalPER(t *testing.T) {
	var buf bytes.Buffer
	w := NewResultWriter(&buf)

	require.NoError(t, w.Write(ResultRow{
		Params:    Params{PacketLength: 37, NumPackets: 1000, PHY: 2, TxPower: -10, Channel: 39},
		Atten:     65,
		PERMaster: 97.5,
		PERSlave:  100,
	}))
	assert.Equal(t, "37,1000,2,-65,-10,39,97.5,100\n", buf.String())
}

func TestResultWriterCloseAppendsBlankLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewResultWriter(&buf)

	require.NoError(t, w.Write(ResultRow{
		Params: Params{PacketLength: 250, NumPackets: 5000, PHY: 1},
		Atten:  90,
	}))
	require.NoError(t, w.Close())
	assert.Equal(t, "250,5000,1,-90,0,0,0,0\n\n", buf.String())
}
