package tracker

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
	"github.com/agaabrieel/trackercore/pkg/lifecycle"
	"github.com/agaabrieel/trackercore/pkg/log"
	"github.com/agaabrieel/trackercore/pkg/metainfo"
)

// client is the polymorphic announce/scrape surface HTTPClient and
// UDPClient both satisfy, per spec section 9's "realize this as a tagged
// variant (or an interface/trait with two concrete implementations)".
type client interface {
	Announce(url string, req AnnounceRequest) (*AnnounceResponse, error)
	Scrape(url string, hashes []InfoHash) (map[InfoHash]ScrapeStats, error)
}

// Manager owns a torrent's tier/endpoint topology and drives scheduled
// announces on a single background worker, per spec sections 4.7 and 5.
//
// Grounded on the teacher's TrackerManager/Tracker/setupTracker/Announce
// (a channel-driven single-tracker model), generalized to the full
// multi-tier scheduler of original_source's manager.cpp workerLoop/
// tryOneTier. The teacher's pkg/messaging actor plumbing is replaced by
// the direct Start/Stop/Announce/DrainNewPeers/SetPeersCallback surface,
// since that surface is this module's external interface rather than an
// internal actor protocol.
type Manager struct {
	tiers    []*Tier
	infoHash InfoHash
	peerID   PeerID
	port     uint16
	key      uint32

	statsMu    sync.Mutex
	uploaded   uint64
	downloaded uint64
	left       uint64

	peersMu      sync.Mutex
	pendingPeers []PeerAddr
	peersCb      func([]PeerAddr)

	http *HTTPClient
	udp  *UDPClient

	worker *lifecycle.Worker
	logger *log.Logger
}

// NewManager builds a Manager for one torrent session. left is
// initialized from the torrent's total length when m.Info is populated
// (i.e. not a bare magnet-derived Metainfo).
func NewManager(m *metainfo.Metainfo, peerID PeerID, port uint16, cfg Config, logger *log.Logger) *Manager {
	tiers := make([]*Tier, 0, len(m.AnnounceList))
	for _, t := range m.AnnounceList {
		tier := &Tier{}
		for _, u := range t {
			tier.Endpoints = append(tier.Endpoints, NewEndpointWithConfig(u, cfg))
		}
		tiers = append(tiers, tier)
	}

	var left uint64
	for _, f := range m.Info.Files {
		left += f.Length
	}

	if logger == nil {
		logger = log.New("tracker.manager", log.DiscardSink{})
	}

	return &Manager{
		tiers:    tiers,
		infoHash: m.InfoHash,
		peerID:   peerID,
		port:     port,
		key:      randomKey(),
		left:     left,
		http:     NewHTTPClient(cfg),
		udp:      NewUDPClient(cfg),
		worker:   lifecycle.NewWorker(),
		logger:   logger,
	}
}

func randomKey() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

// SetStats updates the uploaded/downloaded/left counters reported on the
// next announce.
func (m *Manager) SetStats(uploaded, downloaded, left uint64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.uploaded = uploaded
	m.downloaded = downloaded
	m.left = left
}

// Start launches the background worker exactly once.
func (m *Manager) Start() {
	m.worker.Start(m.workerLoop)
}

// Stop signals the worker and blocks until it exits. No peers callback
// fires after Stop returns.
func (m *Manager) Stop() {
	m.worker.Stop()
	m.peersMu.Lock()
	m.peersCb = nil
	m.peersMu.Unlock()
}

// DrainNewPeers atomically swaps out and returns the accumulated peer
// buffer.
func (m *Manager) DrainNewPeers() []PeerAddr {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	out := m.pendingPeers
	m.pendingPeers = nil
	return out
}

// SetPeersCallback replaces the callback invoked as new peers are
// delivered. Safe to call at any time; invocations occur on the worker
// goroutine (or the caller's, for a manual Announce) with no core locks
// held.
func (m *Manager) SetPeersCallback(f func([]PeerAddr)) {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	m.peersCb = f
}

func (m *Manager) clientFor(ep *Endpoint) client {
	if ep.Scheme == SchemeUDP {
		return m.udp
	}
	return m.http
}

func (m *Manager) makeRequest(ep *Endpoint, event AnnounceEvent, numwant uint32) AnnounceRequest {
	m.statsMu.Lock()
	req := AnnounceRequest{
		InfoHash:   m.infoHash,
		PeerID:     m.peerID,
		Port:       m.port,
		Uploaded:   m.uploaded,
		Downloaded: m.downloaded,
		Left:       m.left,
		Event:      event,
		NumWant:    numwant,
		Key:        m.key,
		Compact:    true,
		NoPeerID:   true,
		TrackerID:  ep.TrackerID,
	}
	m.statsMu.Unlock()
	return req
}

// tryOneTier implements the spec section 4.7 attempt policy: starting
// from the tier's current endpoint, try up to len(endpoints) times,
// rotating past any endpoint that cannot announce yet or that fails.
// Returns whether an endpoint succeeded.
func (m *Manager) tryOneTier(tierIdx int, tier *Tier, event AnnounceEvent, numwant uint32) bool {
	if len(tier.Endpoints) == 0 {
		return false
	}
	now := time.Now()
	startIdx := tier.CurrentIndex

	for tries := 0; tries < len(tier.Endpoints); tries++ {
		ep := tier.Current()
		if !ep.CanAnnounceNow(now) {
			tier.Rotate()
			continue
		}

		req := m.makeRequest(ep, event, numwant)
		resp, err := m.clientFor(ep).Announce(ep.URL, req)
		if err != nil {
			ep.RecordFailure()
			m.logger.Warn("announce attempt failed", func(r *log.Record) {
				r.URL = ep.URL
				r.Tier = tierIdx
				r.Event = event.String()
				r.Message = err.Error()
			})
			tier.Rotate()
			if tier.CurrentIndex == startIdx {
				break
			}
			continue
		}

		interval := resp.Interval
		if resp.MinInterval != nil {
			interval = *resp.MinInterval
		}
		ep.RecordSuccess(interval)
		if resp.TrackerID != "" {
			ep.TrackerID = resp.TrackerID
		}

		m.logger.Info("announce succeeded", func(r *log.Record) {
			r.URL = ep.URL
			r.Tier = tierIdx
			r.Event = event.String()
			r.Interval = interval
		})

		if len(resp.Peers) > 0 {
			m.peersMu.Lock()
			m.pendingPeers = append(m.pendingPeers, resp.Peers...)
			cb := m.peersCb
			m.peersMu.Unlock()

			if cb != nil {
				cb(resp.Peers)
			}
		}
		return true
	}
	return false
}

func (m *Manager) earliestNextAllowed(now time.Time) (time.Time, bool) {
	var earliest time.Time
	have := false
	for _, tier := range m.tiers {
		for _, ep := range tier.Endpoints {
			if ep.Disabled {
				continue
			}
			if ep.NextAllowed.IsZero() {
				return now.Add(time.Second), true
			}
			if !have || ep.NextAllowed.Before(earliest) {
				earliest = ep.NextAllowed
				have = true
			}
		}
	}
	return earliest, have
}

// workerLoop is the manager's single background worker, per spec section
// 4.7's "worker loop" and section 5's concurrency model.
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		now := time.Now()
		for i, tier := range m.tiers {
			if ctx.Err() != nil {
				return
			}
			if tier.AnyAvailable(now) {
				m.tryOneTier(i, tier, EventNone, 50)
				break
			}
		}

		if ctx.Err() != nil {
			return
		}

		sleepDur := time.Second
		if earliest, have := m.earliestNextAllowed(time.Now()); have {
			if delta := time.Until(earliest); delta > 0 {
				sleepDur = delta
			} else {
				sleepDur = time.Second
			}
		}
		m.worker.WaitWake(ctx, sleepDur)
	}
}

// Announce performs one tryOneTier synchronously on the caller's
// goroutine against the first tier that has an available endpoint — the
// vehicle for started/stopped events on session boundaries. Returns an
// EmptyTier error if no tier has any available endpoint.
func (m *Manager) Announce(event AnnounceEvent, numwant uint32) error {
	now := time.Now()
	for i, tier := range m.tiers {
		if tier.AnyAvailable(now) {
			if m.tryOneTier(i, tier, event, numwant) {
				return nil
			}
			return apperrors.New(apperrors.TrackerFailure, "manual announce attempt failed against every available endpoint")
		}
	}
	return apperrors.New(apperrors.EmptyTier, "no tier has an available endpoint")
}
