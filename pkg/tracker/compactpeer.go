package tracker

import (
	"encoding/binary"
	"net"
)

// DecodeCompactIPv4 decodes a compact peer blob (6 bytes per peer: 4-byte
// big-endian address, 2-byte big-endian port). A length that is not a
// multiple of 6 is permissive — it yields an empty slice rather than an
// error, per spec section 4.3.
//
// Grounded on the 6-byte-stride loop duplicated across the teacher's
// parseAnnounceResponse and internal/client/client.go, generalized into
// one shared function.
func DecodeCompactIPv4(b []byte) []PeerAddr {
	const stride = 6
	if len(b)%stride != 0 {
		return nil
	}
	peers := make([]PeerAddr, 0, len(b)/stride)
	for i := 0; i < len(b); i += stride {
		ip := net.IPv4(b[i], b[i+1], b[i+2], b[i+3])
		port := binary.BigEndian.Uint16(b[i+4 : i+6])
		peers = append(peers, PeerAddr{IP: ip, Port: port})
	}
	return peers
}

// DecodeCompactIPv6 decodes an 18-byte-per-peer compact blob (16-byte
// address, 2-byte big-endian port). The teacher never implements an IPv6
// variant; this generalizes DecodeCompactIPv4's shape to RFC 5952 peers.
func DecodeCompactIPv6(b []byte) []PeerAddr {
	const stride = 18
	if len(b)%stride != 0 {
		return nil
	}
	peers := make([]PeerAddr, 0, len(b)/stride)
	for i := 0; i < len(b); i += stride {
		ip := make(net.IP, 16)
		copy(ip, b[i:i+16])
		port := binary.BigEndian.Uint16(b[i+16 : i+18])
		peers = append(peers, PeerAddr{IP: ip, Port: port})
	}
	return peers
}
