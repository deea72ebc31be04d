package main

import (
	"encoding/binary"
	"errors"
	"math/rand/v2"

	"github.com/zeebo/xxh3"
)

const checksumSize = 8

var errChecksum = errors.New("checksum mismatch")

// newPayload returns size random bytes prefixed by the xxh3 hash of the rest.
func newPayload(size int) []byte {
	payload := make([]byte, size)
	data := payload[checksumSize:]
	for i := range data {
		data[i] = byte(rand.Uint32())
	}
	binary.BigEndian.PutUint64(payload, xxh3.Hash(data))
	return payload
}

func verifyPayload(payload []byte) error {
	if len(payload) < checksumSize {
		return errChecksum
	}
	if binary.BigEndian.Uint64(payload) != xxh3.Hash(payload[checksumSize:]) {
		return errChecksum
	}
	return nil
}
