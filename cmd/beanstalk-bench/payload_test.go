package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayload(t *testing.T) {
	payload := newPayload(64)
	require.Len(t, payload, 64)
	require.NoError(t, verifyPayload(payload))

	payload[40] ^= 0xff
	require.ErrorIs(t, verifyPayload(payload), errChecksum)

	require.NoError(t, verifyPayload(newPayload(checksumSize)))
	require.ErrorIs(t, verifyPayload([]byte("short")), errChecksum)
}
