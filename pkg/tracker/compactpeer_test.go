package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCompactIPv4(t *testing.T) {
	blob := []byte{1, 2, 3, 4, 0x1A, 0xE1, 5, 6, 7, 8, 0x00, 0x50}
	peers := DecodeCompactIPv4(blob)
	require.Len(t, peers, 2)
	assert.Equal(t, "1.2.3.4", peers[0].IP.String())
	assert.Equal(t, uint16(6881), peers[0].Port)
	assert.Equal(t, "5.6.7.8", peers[1].IP.String())
	assert.Equal(t, uint16(80), peers[1].Port)
}

func TestDecodeCompactIPv4NonMultipleIsPermissive(t *testing.T) {
	peers := DecodeCompactIPv4([]byte{1, 2, 3})
	assert.Nil(t, peers)
}

func TestDecodeCompactIPv4Empty(t *testing.T) {
	peers := DecodeCompactIPv4(nil)
	assert.Len(t, peers, 0)
}

func TestDecodeCompactIPv6(t *testing.T) {
	blob := make([]byte, 18)
	blob[15] = 1 // ::1
	blob[16] = 0x1A
	blob[17] = 0xE1
	peers := DecodeCompactIPv6(blob)
	require.Len(t, peers, 1)
	assert.Equal(t, "::1", peers[0].IP.String())
	assert.Equal(t, uint16(6881), peers[0].Port)
}

func TestDecodeCompactIPv6NonMultipleIsPermissive(t *testing.T) {
	peers := DecodeCompactIPv6(make([]byte, 17))
	assert.Nil(t, peers)
}
