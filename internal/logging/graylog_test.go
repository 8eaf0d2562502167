package logging

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Graylog(t *testing.T) {
	swapStdout(t)
	var graylog bytes.Buffer

	m := NewSlogManager()
	m.Setup(Options{File: &bytes.Buffer{}, Graylog: &graylog})
	m.Logger().Warn("serve fault", "winner", "right")

	assert.Contains(t, graylog.String(), `msg="serve fault" winner=right`)
}

func TestNewGraylogWriter(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	w, err := NewGraylogWriter(conn.LocalAddr().String())
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("level=INFO msg=\"point decided\"\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 8192)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	assert.Positive(t, n)
}
