package tracker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agaabrieel/trackercore/pkg/log"
	"github.com/agaabrieel/trackercore/pkg/metainfo"
)

func newTestManager(tierAURL, tierBURL string) *Manager {
	m := &metainfo.Metainfo{
		AnnounceList: []metainfo.Tier{
			{tierAURL},
			{tierBURL},
		},
	}
	var peerID PeerID
	return NewManager(m, peerID, 6881, DefaultConfig(), log.New("test", log.DiscardSink{}))
}

func TestManagerFailsOverToNextTier(t *testing.T) {
	tierA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer tierA.Close()

	tierB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d8:intervali1800e8:completei1e10:incompletei0e5:peers6:\x09\x09\x09\x09\x1a\xe1e"))
	}))
	defer tierB.Close()

	mgr := newTestManager(tierA.URL+"/announce", tierB.URL+"/announce")

	var delivered []PeerAddr
	mgr.SetPeersCallback(func(peers []PeerAddr) {
		delivered = append(delivered, peers...)
	})

	for i := 0; i < 3; i++ {
		mgr.Announce(EventNone, 50)
	}

	require.NotEmpty(t, delivered)
	assert.Equal(t, "9.9.9.9", delivered[0].IP.String())
	assert.True(t, mgr.tiers[0].Endpoints[0].FailureCount > 0)
	assert.False(t, mgr.tiers[1].Endpoints[0].Disabled)
}

func TestManagerAnnounceEmptyTierError(t *testing.T) {
	mgr := &Manager{
		http:   NewHTTPClient(DefaultConfig()),
		udp:    NewUDPClient(DefaultConfig()),
		logger: log.New("test", log.DiscardSink{}),
	}
	err := mgr.Announce(EventStarted, 0)
	require.Error(t, err)
}

func TestManagerDrainNewPeers(t *testing.T) {
	tierB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d8:intervali1800e8:completei1e10:incompletei0e5:peers6:\x01\x02\x03\x04\x00\x50e"))
	}))
	defer tierB.Close()

	mgr := newTestManager(tierB.URL+"/announce", tierB.URL+"/announce")
	require.NoError(t, mgr.Announce(EventStarted, 50))

	peers := mgr.DrainNewPeers()
	require.Len(t, peers, 1)
	assert.Equal(t, "1.2.3.4", peers[0].IP.String())

	assert.Empty(t, mgr.DrainNewPeers())
}
