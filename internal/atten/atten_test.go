package atten

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a scripted serial control channel: reads come from the
// preloaded response buffer, writes are captured.
type fakePort struct {
	responses bytes.Buffer
	written   bytes.Buffer
}

func (f *fakePort) Read(p []byte) (int, error)  { return f.responses.Read(p) }
func (f *fakePort) Write(p []byte) (int, error) { return f.written.Write(p) }

func TestSetAttenuation(t *testing.T) {
	port := &fakePort{}
	port.responses.WriteString("1\r\n")

	a := New(port)
	require.NoError(t, a.SetAttenuation(30))
	assert.Equal(t, ":SETATT=30.0;\r\n", port.written.String())
}

func TestSetAttenuationBadAck(t *testing.T) {
	port := &fakePort{}
	port.responses.WriteString("0\r\n")

	a := New(port)
	err := a.SetAttenuation(90)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unexpected ack "0"`)
}

func TestSetAttenuationNoAck(t *testing.T) {
	port := &fakePort{}

	a := New(port)
	err := a.SetAttenuation(20)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)
}
