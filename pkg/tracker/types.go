// Package tracker drives announce/scrape exchanges against the tiers of
// trackers named by a torrent's metainfo, over both HTTP(S) and UDP
// (BEP-15), and schedules re-announces with per-endpoint exponential
// backoff. It is the root of the module's dependency graph: it consumes
// pkg/metainfo's InfoHash and pkg/bencode's decoder, and no other package
// under pkg/ imports it (only the cmd demo binary does).
//
// Grounded on the teacher's pkg/tracker/tracker.go (client interface,
// HTTPClient/UDPClient split, TrackerManager shape) generalized to the
// multi-tier scheduler of original_source/bittorrent/tracker's
// manager.cpp/endpoint.cpp, which the teacher's single-tracker model does
// not implement.
package tracker

import (
	"net"
	"strconv"
	"time"

	"github.com/agaabrieel/trackercore/pkg/metainfo"
)

// InfoHash is shared with pkg/metainfo so callers never need to convert
// between two 20-byte array types.
type InfoHash = metainfo.InfoHash

// PeerID is a locally generated, opaque per-session identifier.
type PeerID [20]byte

// Scheme identifies which wire protocol an endpoint's URL uses.
type Scheme uint8

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
	SchemeUDP
)

func (s Scheme) String() string {
	switch s {
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	case SchemeUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// DetectScheme classifies an announce URL by its prefix.
// Grounded on original_source/bittorrent/tracker/src/manager.cpp's
// detectScheme.
func DetectScheme(url string) Scheme {
	switch {
	case hasPrefix(url, "udp://"):
		return SchemeUDP
	case hasPrefix(url, "https://"):
		return SchemeHTTPS
	default:
		return SchemeHTTP
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// AnnounceEvent is the client-reported session-lifecycle state attached to
// an announce request.
type AnnounceEvent uint8

const (
	EventNone AnnounceEvent = iota
	EventStarted
	EventCompleted
	EventStopped
)

func (e AnnounceEvent) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventStopped:
		return "stopped"
	default:
		return "none"
	}
}

// PeerAddr is one peer address as reported by a tracker.
type PeerAddr struct {
	IP     net.IP
	Port   uint16
	PeerID *[20]byte
}

func (p PeerAddr) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// AnnounceRequest is the set of parameters sent to a tracker on an
// announce. The zero value has Compact and NoPeerID false; the Manager
// always sets both to true, since this module never wants the verbose
// peer-dict response form.
type AnnounceRequest struct {
	InfoHash   InfoHash
	PeerID     PeerID
	Port       uint16
	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	Event      AnnounceEvent
	NumWant    uint32
	Key        uint32
	Compact    bool
	NoPeerID   bool
	IPv6       string
	TrackerID  string
}

// AnnounceResponse is a tracker's reply to an announce.
type AnnounceResponse struct {
	Interval    time.Duration
	MinInterval *time.Duration
	Complete    uint32
	Incomplete  uint32
	Peers       []PeerAddr
	Warning     string
	TrackerID   string
}

// ScrapeStats is one infohash's aggregate swarm statistics.
type ScrapeStats struct {
	Complete   uint32
	Downloaded uint32
	Incomplete uint32
	Name       string
}

// Tier is an ordered preference group of trackers; a manager exhausts a
// tier before moving to the next.
type Tier struct {
	Endpoints    []*Endpoint
	CurrentIndex int
}

// NewTier builds a Tier with one Endpoint per announce URL, in order.
func NewTier(urls []string) *Tier {
	t := &Tier{Endpoints: make([]*Endpoint, 0, len(urls))}
	for _, u := range urls {
		t.Endpoints = append(t.Endpoints, NewEndpoint(u))
	}
	return t
}
