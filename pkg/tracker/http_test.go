package tracker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
)

func TestBuildAnnounceURL(t *testing.T) {
	var infoHash InfoHash
	for i := range infoHash {
		infoHash[i] = byte(i)
	}
	var peerID PeerID
	req := AnnounceRequest{
		InfoHash: infoHash,
		PeerID:   peerID,
		Port:     6881,
		Key:      2712847316,
		IPv6:     "fe80::1",
		Compact:  true,
	}
	url := buildAnnounceURL("http://tracker.example/announce", req)

	assert.Contains(t, url, "info_hash=%00%01%02%03%04%05%06%07%08%09%0A%0B%0C%0D%0E%0F%10%11%12%13")
	assert.Contains(t, url, "key=2712847316")
	assert.Contains(t, url, "ipv6=fe80%3A%3A1")
	assert.Contains(t, url, "compact=1")
	assert.Contains(t, url, "port=6881")
}

func TestParseAnnounceResponse(t *testing.T) {
	body := "d8:intervali1800e12:min intervali900e8:completei10e10:incompletei5e" +
		"15:warning message9:be polite10:tracker id6:trk-42" +
		"5:peers6:\x01\x02\x03\x04\x1a\xe1e"

	resp, err := parseAnnounceResponse([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 1800*time.Second, resp.Interval)
	require.NotNil(t, resp.MinInterval)
	assert.Equal(t, 900*time.Second, *resp.MinInterval)
	assert.Equal(t, uint32(10), resp.Complete)
	assert.Equal(t, uint32(5), resp.Incomplete)
	assert.Equal(t, "be polite", resp.Warning)
	assert.Equal(t, "trk-42", resp.TrackerID)
	require.Len(t, resp.Peers, 1)
	assert.Equal(t, "1.2.3.4", resp.Peers[0].IP.String())
	assert.Equal(t, uint16(6881), resp.Peers[0].Port)
}

func TestParseAnnounceResponseFailureReason(t *testing.T) {
	body := "d14:failure reason17:torrent not founde"
	_, err := parseAnnounceResponse([]byte(body))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.TrackerFailure))
}

func TestHTTPClientAnnounceAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d8:intervali1800e8:completei1e10:incompletei0ee"))
	}))
	defer srv.Close()

	c := NewHTTPClient(DefaultConfig())
	resp, err := c.Announce(srv.URL+"/announce", AnnounceRequest{Port: 6881})
	require.NoError(t, err)
	assert.Equal(t, 1800*time.Second, resp.Interval)
	assert.Equal(t, uint32(1), resp.Complete)
}

func TestHTTPClientAnnounceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(DefaultConfig())
	_, err := c.Announce(srv.URL+"/announce", AnnounceRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.HttpStatus))
}

func TestScrapeURLReplacesAnnounceSegment(t *testing.T) {
	u, err := ScrapeURL("http://tracker.example/path/announce")
	require.NoError(t, err)
	assert.Equal(t, "http://tracker.example/path/scrape", u)
}

func TestScrapeURLUnsupported(t *testing.T) {
	_, err := ScrapeURL("http://tracker.example/path/notannounce")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ScrapeUnsupported))
}
