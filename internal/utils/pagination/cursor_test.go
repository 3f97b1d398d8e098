package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyTokenIsFirstPage(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestEncodeDecode(t *testing.T) {
	token, err := Encode(Cursor{ID: "user-7", CreatedUnix: 1700000000123})
	require.NoError(t, err)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", c.ID)
	assert.Equal(t, int64(1700000000123), c.CreatedUnix)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("%%%")
	assert.Error(t, err)

	_, err = Decode("bm90LWpzb24=") // "not-json"
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	assert.Empty(t, Next(false, Cursor{ID: "x"}))
	assert.NotEmpty(t, Next(true, Cursor{ID: "x"}))
}
