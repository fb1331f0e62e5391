package codec

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	buf, err := Encode("ab", "xyz")
	require.NoError(t, err)

	expected := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 'a', 'b', 'x', 'y', 'z'}
	assert.Equal(t, expected, buf)
	assert.Equal(t, EncodedLen("ab", "xyz"), len(buf))
}

func TestRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"a", "1"},
		{"", ""},
		{"key", ""},
		{"", "value"},
		{"schlüssel", "wert ✓"},
		{"日本", "語"},
		{strings.Repeat("k", 4096), strings.Repeat("v", 70000)},
	}

	for _, p := range pairs {
		buf, err := Encode(p[0], p[1])
		require.NoError(t, err)

		e, err := Decode(buf, 0)
		require.NoError(t, err)
		assert.True(t, e.Live)
		assert.Equal(t, p[0], e.Key)
		assert.Equal(t, p[1], e.Value)
		assert.Equal(t, 0, e.Offset)
		assert.Equal(t, len(buf), e.Len)
	}
}

func TestDecodeAtOffset(t *testing.T) {
	first, err := Encode("first", "1")
	require.NoError(t, err)
	buf, err := AppendEncoded(first, "second", "2")
	require.NoError(t, err)

	e, err := Decode(buf, len(first))
	require.NoError(t, err)
	assert.Equal(t, "second", e.Key)
	assert.Equal(t, "2", e.Value)
	assert.Equal(t, len(first), e.Offset)
}

func TestDecodeDeadEntry(t *testing.T) {
	buf, err := Encode("k", "v")
	require.NoError(t, err)
	buf[0] = Dead

	e, err := Decode(buf, 0)
	require.NoError(t, err)
	assert.False(t, e.Live)
	assert.Equal(t, "k", e.Key)
}

func TestDecodeCorruption(t *testing.T) {
	valid, err := Encode("key", "value")
	require.NoError(t, err)

	t.Run("TruncatedHeader", func(t *testing.T) {
		_, err := Decode(valid[:5], 0)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("TruncatedBody", func(t *testing.T) {
		_, err := Decode(valid[:len(valid)-1], 0)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("HugeDeclaredLength", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		binary.BigEndian.PutUint32(buf[1:5], 0xFFFFFFFF)
		_, err := Decode(buf, 0)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("InvalidLiveness", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		buf[0] = 7
		_, err := Decode(buf, 0)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("InvalidUTF8Key", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		buf[HeaderSize] = 0xff
		_, err := Decode(buf, 0)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("InvalidUTF8Value", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		buf[len(buf)-1] = 0xfe
		_, err := Decode(buf, 0)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("OffsetOutOfRange", func(t *testing.T) {
		_, err := Decode(valid, len(valid))
		assert.ErrorIs(t, err, ErrCorruption)
	})
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	for _, kv := range [][2]string{{"\xff", "v"}, {"k", "a\xfeb"}, {"\xc3", ""}} {
		dst := []byte("prefix")
		out, err := AppendEncoded(dst, kv[0], kv[1])
		assert.ErrorIs(t, err, ErrEncoding, "%q=%q", kv[0], kv[1])
		assert.Equal(t, []byte("prefix"), out)

		_, err = Encode(kv[0], kv[1])
		assert.ErrorIs(t, err, ErrEncoding)
	}
}

func TestCheckLen(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("length overflow needs 64 bit int")
	}

	require.NoError(t, checkLen("key", 0))
	require.NoError(t, checkLen("key", math.MaxUint32))

	over := uint64(math.MaxUint32) + 1
	err := checkLen("value", int(over))
	assert.ErrorIs(t, err, ErrEncoding)
	assert.Contains(t, err.Error(), "value length")
}

func TestScannerSkipsDeadEntries(t *testing.T) {
	var buf []byte
	var err error
	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"a", "3"}, {"c", "4"}} {
		buf, err = AppendEncoded(buf, kv[0], kv[1])
		require.NoError(t, err)
	}

	// tombstone the first entry ("a" -> "1")
	buf[0] = Dead

	var got []string
	sc := NewScanner(buf)
	for sc.Next() {
		e := sc.Entry()
		got = append(got, e.Key+"="+e.Value)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"b=2", "a=3", "c=4"}, got)

	// exhausted scanners stay exhausted
	assert.False(t, sc.Next())
}

func TestScannerEmpty(t *testing.T) {
	sc := NewScanner(nil)
	assert.False(t, sc.Next())
	assert.NoError(t, sc.Err())
}

func TestScannerStopsOnCorruption(t *testing.T) {
	buf, err := Encode("a", "1")
	require.NoError(t, err)
	buf = append(buf, 1, 0, 0) // trailing garbage

	sc := NewScanner(buf)
	require.True(t, sc.Next())
	assert.Equal(t, "a", sc.Entry().Key)
	assert.False(t, sc.Next())
	assert.ErrorIs(t, sc.Err(), ErrCorruption)
}

func TestFind(t *testing.T) {
	buf, err := Encode("a", "1")
	require.NoError(t, err)
	offset := len(buf)
	buf, err = AppendEncoded(buf, "b", "2")
	require.NoError(t, err)

	e, ok, err := Find(buf, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", e.Value)
	assert.Equal(t, offset, e.Offset)

	_, ok, err = Find(buf, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
