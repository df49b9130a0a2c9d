package wire

import (
	"bytes"
	"testing"

	"github.com/oddlama/forge/pkg/codec"
	"github.com/stretchr/testify/require"
)

func TestRegistryAgreement(t *testing.T) {
	// Every descriptor's slot index must equal its PacketID: this is what
	// guarantees the controller and dispatcher, which both import this
	// package, can never disagree about ids, names, or kinds.
	for i, d := range registry {
		require.Equal(t, PacketID(i), d.id)
		require.NotEmpty(t, d.name)
	}
}

func TestCheckAliveHandshakeWireBytes(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	require.NoError(t, WritePacket(w, &CheckAlive{}))
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, buf.Bytes())

	r := codec.NewReader(&buf)
	req, err := ReadRequest(r)
	require.NoError(t, err)
	require.IsType(t, &CheckAlive{}, req)
}

func TestOneResponsePerRequestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	require.NoError(t, WritePacket(w, &Ack{}))

	r := codec.NewReader(&buf)
	resp, err := ReadResponse(r)
	require.NoError(t, err)
	require.IsType(t, &Ack{}, resp)
	require.Equal(t, 0, buf.Len())
}

func TestUnknownPacketIDIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	require.NoError(t, w.WriteU32(9999))
	require.NoError(t, w.Flush())

	r := codec.NewReader(&buf)
	_, err := ReadRequest(r)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestResponseSentAsRequestIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	require.NoError(t, WritePacket(w, &Ok{}))

	r := codec.NewReader(&buf)
	_, err := ReadRequest(r)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestStatRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	require.NoError(t, WritePacket(w, &Stat{Path: "/nope"}))

	r := codec.NewReader(&buf)
	req, err := ReadRequest(r)
	require.NoError(t, err)
	stat, ok := req.(*Stat)
	require.True(t, ok)
	require.Equal(t, "/nope", stat.Path)
	require.False(t, stat.FollowLinks)
	require.False(t, stat.Sha512Sum)
}

func TestUploadRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	mode := "0644"
	require.NoError(t, WritePacket(w, &Upload{File: "/tmp/t", Content: []byte("hello"), Mode: &mode}))

	r := codec.NewReader(&buf)
	req, err := ReadRequest(r)
	require.NoError(t, err)
	upload, ok := req.(*Upload)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), upload.Content)
	require.Equal(t, "0644", *upload.Mode)
	require.Nil(t, upload.Owner)
}

func TestEncodingDeterministic(t *testing.T) {
	encode := func() []byte {
		var buf bytes.Buffer
		w := codec.NewWriter(&buf)
		require.NoError(t, WritePacket(w, &ProcessRun{Command: []string{"id"}, CaptureOutput: true}))
		return buf.Bytes()
	}
	require.Equal(t, encode(), encode())
}
