package qr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	png, err := Encode("http://kiosk.local/api/v1/loyalty/demo/scan", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestEncode_DefaultSize(t *testing.T) {
	png, err := Encode("http://kiosk.local", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
