package tracker

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
)

// protocolID is the BEP-15 magic constant opening every connect request.
const protocolID uint64 = 0x41727101980

type udpAction uint32

const (
	actionConnect udpAction = iota
	actionAnnounce
	actionScrape
	actionError
)

// udpConn caches a connection id per host for UDPConnectionTTL, per spec
// section 4.5's connection lifecycle.
type udpConn struct {
	id     uint64
	expiry time.Time
}

// UDPClient implements the BEP-15 connect/announce/scrape exchange over a
// datagram socket, with its own attempt/backoff loop and a per-host
// connection-id cache (the teacher's cache never expires; this one does).
//
// Grounded on the teacher's UDPClient.Announce/makeConnectionRequest/
// makeAnnounceRequest/generateAnnounceMsg, generalized with the retry
// loop and Scrape operation from
// original_source/bittorrent/tracker/src/udp_tracker.cpp, and corrected to
// the real BEP-15 event mapping {none:0, completed:1, started:2,
// stopped:3} in place of the teacher's {started:1, completed:2,
// stopped:3}.
type UDPClient struct {
	cfg   Config
	mu    sync.Mutex
	conns map[string]udpConn
}

func NewUDPClient(cfg Config) *UDPClient {
	return &UDPClient{cfg: cfg, conns: make(map[string]udpConn)}
}

// parsedUDPURL is the host/port/address this client resolved a udp://
// announce URL to.
type parsedUDPURL struct {
	host string
	addr *net.UDPAddr
}

func parseUDPURL(rawURL string) (*parsedUDPURL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.UdpUrl, "malformed udp URL", err)
	}
	if u.Scheme != "udp" {
		return nil, apperrors.New(apperrors.UdpUrl, "not a udp:// URL")
	}
	host := u.Hostname()
	if host == "" {
		return nil, apperrors.New(apperrors.UdpUrl, "udp URL has no host")
	}
	if strings.HasPrefix(u.Host, "[") {
		return nil, apperrors.New(apperrors.UdpUrl, "bracketed IPv6 literals are not supported")
	}
	port := u.Port()
	if port == "" {
		port = "6969"
	}

	addr, err := resolveUDPPreferIPv4(net.JoinHostPort(host, port))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.UdpResolve, "failed to resolve tracker host", err)
	}
	return &parsedUDPURL{host: host + ":" + port, addr: addr}, nil
}

// resolveUDPPreferIPv4 resolves host, preferring an IPv4 result since only
// IPv4 compact peers are parsed from UDP announce responses, falling back
// to any family on failure.
func resolveUDPPreferIPv4(hostPort string) (*net.UDPAddr, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, err
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return net.ResolveUDPAddr("udp", hostPort)
	}
	p, _ := strconv.Atoi(port)

	for _, ip := range ips {
		if ip.To4() != nil {
			return &net.UDPAddr{IP: ip, Port: p}, nil
		}
	}
	return &net.UDPAddr{IP: ips[0], Port: p}, nil
}

func randomTransactionID() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func eventCode(e AnnounceEvent) uint32 {
	switch e {
	case EventCompleted:
		return 1
	case EventStarted:
		return 2
	case EventStopped:
		return 3
	default:
		return 0
	}
}

// attemptLoop runs fn up to cfg.UDPMaxAttempts times, doubling the backoff
// (starting at cfg.UDPBackoffStart) between attempts. fn sends one
// request/reply round trip and returns (done, error): done is true on
// success or on a terminal protocol error; false asks for another
// attempt after the backoff sleep.
func (c *UDPClient) attemptLoop(fn func(attempt int) (done bool, err error)) error {
	backoff := c.cfg.UDPBackoffStart
	var lastErr error
	for attempt := 0; attempt < c.cfg.UDPMaxAttempts; attempt++ {
		done, err := fn(attempt)
		if done {
			return err
		}
		lastErr = err
		if attempt < c.cfg.UDPMaxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return apperrors.New(apperrors.UdpExhausted, "udp operation exhausted retries without a reply")
}

func (c *UDPClient) dial(addr *net.UDPAddr) (*net.UDPConn, error) {
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.UdpSocket, "failed to open udp socket", err)
	}
	return conn, nil
}

func (c *UDPClient) connect(conn *net.UDPConn) (uint64, error) {
	var connID uint64
	err := c.attemptLoop(func(attempt int) (bool, error) {
		tx, err := randomTransactionID()
		if err != nil {
			return true, apperrors.Wrap(apperrors.UdpSend, "failed to generate transaction id", err)
		}

		req := make([]byte, 16)
		binary.BigEndian.PutUint64(req[0:8], protocolID)
		binary.BigEndian.PutUint32(req[8:12], uint32(actionConnect))
		binary.BigEndian.PutUint32(req[12:16], tx)

		conn.SetWriteDeadline(time.Now().Add(c.cfg.UDPTimeout))
		if _, err := conn.Write(req); err != nil {
			return false, apperrors.Wrap(apperrors.UdpSend, "failed to send connect request", err)
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.UDPTimeout))
		buf := make([]byte, 2048)
		n, err := conn.Read(buf)
		if err != nil {
			return false, apperrors.Wrap(apperrors.UdpRecv, "no connect reply", err)
		}
		if n < 16 {
			return false, apperrors.New(apperrors.UdpShortResponse, "connect response too short")
		}

		action := binary.BigEndian.Uint32(buf[0:4])
		rtx := binary.BigEndian.Uint32(buf[4:8])
		if action == uint32(actionError) {
			return true, apperrors.New(apperrors.UdpProtocolError, string(buf[8:n]))
		}
		if action != uint32(actionConnect) || rtx != tx {
			return false, apperrors.New(apperrors.UdpProtocolError, "action/transaction mismatch")
		}

		connID = binary.BigEndian.Uint64(buf[8:16])
		return true, nil
	})
	return connID, err
}

func (c *UDPClient) connIDFor(conn *net.UDPConn, host string) (uint64, error) {
	c.mu.Lock()
	cached, ok := c.conns[host]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiry) {
		return cached.id, nil
	}

	id, err := c.connect(conn)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.conns[host] = udpConn{id: id, expiry: time.Now().Add(c.cfg.UDPConnectionTTL)}
	c.mu.Unlock()
	return id, nil
}

func (c *UDPClient) invalidate(host string) {
	c.mu.Lock()
	delete(c.conns, host)
	c.mu.Unlock()
}

func (c *UDPClient) Announce(announceURL string, req AnnounceRequest) (*AnnounceResponse, error) {
	parsed, err := parseUDPURL(announceURL)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial(parsed.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var result *AnnounceResponse
	err = c.attemptLoop(func(attempt int) (bool, error) {
		connID, err := c.connIDFor(conn, parsed.host)
		if err != nil {
			// connect() already exhausted its own attempt loop; don't
			// retry a second time at this level.
			return true, err
		}

		tx, err := randomTransactionID()
		if err != nil {
			return true, apperrors.Wrap(apperrors.UdpSend, "failed to generate transaction id", err)
		}

		pkt := make([]byte, 98)
		binary.BigEndian.PutUint64(pkt[0:8], connID)
		binary.BigEndian.PutUint32(pkt[8:12], uint32(actionAnnounce))
		binary.BigEndian.PutUint32(pkt[12:16], tx)
		copy(pkt[16:36], req.InfoHash[:])
		copy(pkt[36:56], req.PeerID[:])
		binary.BigEndian.PutUint64(pkt[56:64], req.Downloaded)
		binary.BigEndian.PutUint64(pkt[64:72], req.Left)
		binary.BigEndian.PutUint64(pkt[72:80], req.Uploaded)
		binary.BigEndian.PutUint32(pkt[80:84], eventCode(req.Event))
		binary.BigEndian.PutUint32(pkt[84:88], 0) // ip: let the tracker use the sender address
		binary.BigEndian.PutUint32(pkt[88:92], req.Key)
		numwant := req.NumWant
		if numwant == 0 {
			numwant = 0xFFFFFFFF
		}
		binary.BigEndian.PutUint32(pkt[92:96], numwant)
		binary.BigEndian.PutUint16(pkt[96:98], req.Port)

		conn.SetWriteDeadline(time.Now().Add(c.cfg.UDPTimeout))
		if _, err := conn.Write(pkt); err != nil {
			return false, apperrors.Wrap(apperrors.UdpSend, "failed to send announce request", err)
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.UDPTimeout))
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil {
			c.invalidate(parsed.host)
			return false, apperrors.Wrap(apperrors.UdpRecv, "no announce reply", err)
		}
		if n < 8 {
			c.invalidate(parsed.host)
			return false, apperrors.New(apperrors.UdpShortResponse, "announce response too short")
		}

		action := binary.BigEndian.Uint32(buf[0:4])
		rtx := binary.BigEndian.Uint32(buf[4:8])
		if action == uint32(actionError) {
			c.invalidate(parsed.host)
			return true, apperrors.New(apperrors.UdpProtocolError, string(buf[8:n]))
		}
		if rtx != tx || action != uint32(actionAnnounce) {
			return false, apperrors.New(apperrors.UdpProtocolError, "action/transaction mismatch")
		}
		if n < 20 {
			c.invalidate(parsed.host)
			return false, apperrors.New(apperrors.UdpShortResponse, "announce response shorter than 20 bytes")
		}

		resp := &AnnounceResponse{
			Interval:   time.Duration(binary.BigEndian.Uint32(buf[8:12])) * time.Second,
			Incomplete: binary.BigEndian.Uint32(buf[12:16]),
			Complete:   binary.BigEndian.Uint32(buf[16:20]),
			Peers:      DecodeCompactIPv4(buf[20:n]),
		}
		result = resp
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *UDPClient) Scrape(announceURL string, hashes []InfoHash) (map[InfoHash]ScrapeStats, error) {
	if len(hashes) == 0 {
		return map[InfoHash]ScrapeStats{}, nil
	}

	parsed, err := parseUDPURL(announceURL)
	if err != nil {
		return nil, err
	}
	conn, err := c.dial(parsed.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var result map[InfoHash]ScrapeStats
	err = c.attemptLoop(func(attempt int) (bool, error) {
		connID, err := c.connIDFor(conn, parsed.host)
		if err != nil {
			// connect() already exhausted its own attempt loop; don't
			// retry a second time at this level.
			return true, err
		}

		tx, err := randomTransactionID()
		if err != nil {
			return true, apperrors.Wrap(apperrors.UdpSend, "failed to generate transaction id", err)
		}

		pkt := make([]byte, 16+20*len(hashes))
		binary.BigEndian.PutUint64(pkt[0:8], connID)
		binary.BigEndian.PutUint32(pkt[8:12], uint32(actionScrape))
		binary.BigEndian.PutUint32(pkt[12:16], tx)
		for i, h := range hashes {
			copy(pkt[16+i*20:16+(i+1)*20], h[:])
		}

		conn.SetWriteDeadline(time.Now().Add(c.cfg.UDPTimeout))
		if _, err := conn.Write(pkt); err != nil {
			return false, apperrors.Wrap(apperrors.UdpSend, "failed to send scrape request", err)
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.UDPTimeout))
		buf := make([]byte, 8192)
		n, err := conn.Read(buf)
		if err != nil {
			c.invalidate(parsed.host)
			return false, apperrors.Wrap(apperrors.UdpRecv, "no scrape reply", err)
		}
		if n < 8 {
			c.invalidate(parsed.host)
			return false, apperrors.New(apperrors.UdpShortResponse, "scrape response too short")
		}

		action := binary.BigEndian.Uint32(buf[0:4])
		rtx := binary.BigEndian.Uint32(buf[4:8])
		if action == uint32(actionError) {
			c.invalidate(parsed.host)
			return true, apperrors.New(apperrors.UdpProtocolError, string(buf[8:n]))
		}
		if rtx != tx || action != uint32(actionScrape) {
			return false, apperrors.New(apperrors.UdpProtocolError, "action/transaction mismatch")
		}

		need := 8 + 12*len(hashes)
		if n < need {
			c.invalidate(parsed.host)
			return false, apperrors.New(apperrors.UdpShortResponse, fmt.Sprintf("scrape response has %d bytes, need %d", n, need))
		}

		out := make(map[InfoHash]ScrapeStats, len(hashes))
		off := 8
		for _, h := range hashes {
			out[h] = ScrapeStats{
				Complete:   binary.BigEndian.Uint32(buf[off : off+4]),
				Downloaded: binary.BigEndian.Uint32(buf[off+4 : off+8]),
				Incomplete: binary.BigEndian.Uint32(buf[off+8 : off+12]),
			}
			off += 12
		}
		result = out
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
