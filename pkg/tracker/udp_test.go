package tracker

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUDPTracker answers connect requests immediately and hands the
// supplied announce reply builder to each subsequent announce request it
// receives, once every entry of malformedReplies has been sent verbatim,
// one per announce request.
func fakeUDPTracker(t *testing.T, buildAnnounceReply func(reqTx uint32) []byte, malformedReplies [][]byte) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 2048)
		replyIdx := 0
		var connID uint64 = 0xC0FFEE
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if n < 16 {
				continue
			}
			action := binary.BigEndian.Uint32(buf[8:12])
			tx := binary.BigEndian.Uint32(buf[12:16])

			switch action {
			case uint32(actionConnect):
				resp := make([]byte, 16)
				binary.BigEndian.PutUint32(resp[0:4], uint32(actionConnect))
				binary.BigEndian.PutUint32(resp[4:8], tx)
				binary.BigEndian.PutUint64(resp[8:16], connID)
				conn.WriteToUDP(resp, addr)
			case uint32(actionAnnounce):
				if replyIdx < len(malformedReplies) {
					conn.WriteToUDP(malformedReplies[replyIdx], addr)
					replyIdx++
					continue
				}
				conn.WriteToUDP(buildAnnounceReply(tx), addr)
			}
		}
	}()
	return conn
}

func announceReply(tx uint32, interval, leechers, seeders uint32, peers []byte) []byte {
	resp := make([]byte, 20+len(peers))
	binary.BigEndian.PutUint32(resp[0:4], uint32(actionAnnounce))
	binary.BigEndian.PutUint32(resp[4:8], tx)
	binary.BigEndian.PutUint32(resp[8:12], interval)
	binary.BigEndian.PutUint32(resp[12:16], leechers)
	binary.BigEndian.PutUint32(resp[16:20], seeders)
	copy(resp[20:], peers)
	return resp
}

func TestUDPClientAnnounceEndToEnd(t *testing.T) {
	peer := []byte{127, 1, 2, 3, 0x1A, 0xE1}
	server := fakeUDPTracker(t, func(tx uint32) []byte {
		return announceReply(tx, 900, 5, 3, peer)
	}, nil)
	defer server.Close()

	cfg := DefaultConfig()
	cfg.UDPTimeout = 500 * time.Millisecond
	c := NewUDPClient(cfg)

	url := "udp://" + server.LocalAddr().String()
	resp, err := c.Announce(url, AnnounceRequest{Port: 6881})
	require.NoError(t, err)

	assert.Equal(t, 900*time.Second, resp.Interval)
	assert.Equal(t, uint32(5), resp.Incomplete)
	assert.Equal(t, uint32(3), resp.Complete)
	require.Len(t, resp.Peers, 1)
	assert.Equal(t, "127.1.2.3", resp.Peers[0].IP.String())
	assert.Equal(t, uint16(6881), resp.Peers[0].Port)
}

func TestUDPClientRetriesPastMalformedReply(t *testing.T) {
	peer := []byte{127, 1, 2, 3, 0x1A, 0xE1}
	// First announce reply is a 12-byte truncated frame (too short to be a
	// valid announce response); the second is well formed.
	server := fakeUDPTracker(t, func(tx uint32) []byte {
		return announceReply(tx, 900, 5, 3, peer)
	}, [][]byte{make([]byte, 12)})
	defer server.Close()

	cfg := DefaultConfig()
	cfg.UDPTimeout = 500 * time.Millisecond
	cfg.UDPBackoffStart = 50 * time.Millisecond
	c := NewUDPClient(cfg)

	url := "udp://" + server.LocalAddr().String()
	start := time.Now()
	resp, err := c.Announce(url, AnnounceRequest{Port: 6881})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 900*time.Second, resp.Interval)
	assert.True(t, elapsed >= cfg.UDPBackoffStart)
}

func TestEventCodeFollowsBEP15(t *testing.T) {
	assert.Equal(t, uint32(0), eventCode(EventNone))
	assert.Equal(t, uint32(1), eventCode(EventCompleted))
	assert.Equal(t, uint32(2), eventCode(EventStarted))
	assert.Equal(t, uint32(3), eventCode(EventStopped))
}

func TestParseUDPURLDefaultsPort(t *testing.T) {
	parsed, err := parseUDPURL("udp://127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6969", parsed.host)
}

func TestParseUDPURLRejectsNonUDPScheme(t *testing.T) {
	_, err := parseUDPURL("http://tracker.example/announce")
	require.Error(t, err)
}
