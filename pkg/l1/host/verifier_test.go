package host

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUID(t *testing.T) {
	for _, s := range []string{"DEADBEEF", "0xdeadbeef", "de:ad:be:ef", " de-ad-be-ef "} {
		uid, err := ParseUID(s)
		require.NoError(t, err, s)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, uid, s)
	}
	for _, s := range []string{"", "0x", "xyz", "abc"} {
		_, err := ParseUID(s)
		assert.True(t, errors.Is(err, ErrInvalidUID), s)
	}
}

func TestAllowList(t *testing.T) {
	l, err := NewAllowList("0x0102", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []string{"0102", "DEADBEEF"}, l.List())
	assert.True(t, l.Verify([]byte{0xde, 0xad, 0xbe, 0xef}))
	assert.False(t, l.Verify([]byte{0xde, 0xad}))

	removed, err := l.Remove("DE:AD:BE:EF")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, l.Verify([]byte{0xde, 0xad, 0xbe, 0xef}))
	removed, err = l.Remove("deadbeef")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = NewAllowList("nope")
	assert.Error(t, err)

	var zero AllowList
	require.NoError(t, zero.Add("01"))
	assert.True(t, zero.Verify([]byte{1}))
}
