package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripPrimitives(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteI32(-42))
	require.NoError(t, w.WriteU32(42))
	require.NoError(t, w.WriteI64(-1234567890123))
	require.NoError(t, w.WriteU64(1234567890123))
	require.NoError(t, w.WriteBytes([]byte{0x01, 0x02, 0x03}))
	require.NoError(t, w.WriteString("hello"))
	require.NoError(t, w.Flush())

	r := NewReader(&buf)

	b, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b)

	i32, err := r.ReadI32()
	require.NoError(t, err)
	require.Equal(t, int32(-42), i32)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(42), u32)

	i64, err := r.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(-1234567890123), i64)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(1234567890123), u64)

	bs, err := r.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, bs)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestCheckAliveBytesOnWire(t *testing.T) {
	// u32(2) must encode as exactly 00 00 00 02, matching the literal
	// scenario in the protocol spec.
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteU32(2))
	require.NoError(t, w.Flush())
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, buf.Bytes())
}

func TestOptionalRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, WriteOptional(w, (*string)(nil), (*Writer).WriteString))
	s := "present"
	require.NoError(t, WriteOptional(w, &s, (*Writer).WriteString))
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	v1, err := ReadOptional(r, (*Reader).ReadString)
	require.NoError(t, err)
	require.Nil(t, v1)

	v2, err := ReadOptional(r, (*Reader).ReadString)
	require.NoError(t, err)
	require.NotNil(t, v2)
	require.Equal(t, "present", *v2)
}

func TestListRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	items := []string{"a", "bb", "ccc"}
	require.NoError(t, WriteList(w, items, (*Writer).WriteString))
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	got, err := ReadList(r, (*Reader).ReadString)
	require.NoError(t, err)
	require.Equal(t, items, got)
}

func TestEmptyListRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, WriteList(w, []string{}, (*Writer).WriteString))
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	got, err := ReadList(r, (*Reader).ReadString)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestUnexpectedEOFIsFatal(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x00, 0x00}))
	_, err := r.ReadU32()
	require.Error(t, err)
}

func TestEncodingIsDeterministic(t *testing.T) {
	encode := func() []byte {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		require.NoError(t, w.WriteString("repeatable"))
		require.NoError(t, w.WriteU64(9001))
		require.NoError(t, w.Flush())
		return buf.Bytes()
	}

	require.Equal(t, encode(), encode())
}
