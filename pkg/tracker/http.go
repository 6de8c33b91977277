package tracker

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
	"github.com/agaabrieel/trackercore/pkg/bencode"
)

// HTTPClient issues announce/scrape requests against HTTP and HTTPS
// trackers. It is stateless across calls, per spec section 9's "do not
// share any mutable state between the two client types".
//
// Grounded on the teacher's HTTPClient.Announce, generalized to build
// every parameter spec section 4.4 lists (the teacher only sets six), to
// use a custom uppercase-hex percent-encoder instead of url.QueryEscape
// (which lowercases and over-escapes relative to BEP-3 convention), and to
// treat "failure reason" as terminal instead of the teacher's bug of also
// returning a spurious non-nil warning error on every success.
type HTTPClient struct {
	httpClient *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	transport := &http.Transport{}
	client := &http.Client{
		Timeout:   cfg.TransferTimeout,
		Transport: transport,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &HTTPClient{httpClient: client}
}

func isUnreservedByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}

// percentEncodeUpper percent-encodes every byte not in the unreserved set
// using uppercase hex, per spec section 4.4.
func percentEncodeUpper(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if isUnreservedByte(c) {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

func buildAnnounceURL(announceURL string, req AnnounceRequest) string {
	sep := "?"
	if strings.Contains(announceURL, "?") {
		sep = "&"
	}
	var sb strings.Builder
	sb.WriteString(announceURL)
	sb.WriteString(sep)
	sb.WriteString("info_hash=")
	sb.WriteString(percentEncodeUpper(req.InfoHash[:]))
	sb.WriteString("&peer_id=")
	sb.WriteString(percentEncodeUpper(req.PeerID[:]))
	fmt.Fprintf(&sb, "&port=%d", req.Port)
	fmt.Fprintf(&sb, "&uploaded=%d", req.Uploaded)
	fmt.Fprintf(&sb, "&downloaded=%d", req.Downloaded)
	fmt.Fprintf(&sb, "&left=%d", req.Left)
	if req.Event != EventNone {
		sb.WriteString("&event=")
		sb.WriteString(req.Event.String())
	}
	if req.Compact {
		sb.WriteString("&compact=1")
	} else {
		sb.WriteString("&compact=0")
	}
	fmt.Fprintf(&sb, "&numwant=%d", req.NumWant)
	fmt.Fprintf(&sb, "&key=%d", req.Key)
	if req.NoPeerID {
		sb.WriteString("&no_peer_id=1")
	}
	if req.IPv6 != "" {
		sb.WriteString("&ipv6=")
		sb.WriteString(percentEncodeUpper([]byte(req.IPv6)))
	}
	if req.TrackerID != "" {
		sb.WriteString("&trackerid=")
		sb.WriteString(percentEncodeUpper([]byte(req.TrackerID)))
	}
	return sb.String()
}

func (c *HTTPClient) Announce(announceURL string, req AnnounceRequest) (*AnnounceResponse, error) {
	fullURL := buildAnnounceURL(announceURL, req)

	httpReq, err := http.NewRequest(http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.HttpTransport, "failed to build tracker request", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.HttpTransport, "tracker request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.New(apperrors.HttpStatus, fmt.Sprintf("tracker responded with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.HttpTransport, "failed to read tracker response body", err)
	}

	return parseAnnounceResponse(body)
}

func parseAnnounceResponse(body []byte) (*AnnounceResponse, error) {
	root, _, err := bencode.Decode(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.MalformedAnnounce, "failed to parse tracker response", err)
	}
	if root.Kind != bencode.KindDict {
		return nil, apperrors.New(apperrors.MalformedAnnounce, "tracker response is not a dict")
	}

	if failure, ok := root.Get("failure reason"); ok {
		text, ok := failure.AsString()
		if !ok {
			return nil, apperrors.New(apperrors.MalformedAnnounce, "failure reason is not a string")
		}
		return nil, apperrors.New(apperrors.TrackerFailure, string(text))
	}

	resp := &AnnounceResponse{Interval: 1800 * time.Second}

	if v, ok := root.Get("interval"); ok {
		n, ok := v.AsInteger()
		if !ok {
			return nil, apperrors.New(apperrors.MalformedAnnounce, "interval is not an integer")
		}
		resp.Interval = time.Duration(n) * time.Second
	}
	if v, ok := root.Get("min interval"); ok {
		n, ok := v.AsInteger()
		if !ok {
			return nil, apperrors.New(apperrors.MalformedAnnounce, "min interval is not an integer")
		}
		mi := time.Duration(n) * time.Second
		resp.MinInterval = &mi
	}
	if v, ok := root.Get("complete"); ok {
		n, _ := v.AsInteger()
		resp.Complete = uint32(n)
	}
	if v, ok := root.Get("incomplete"); ok {
		n, _ := v.AsInteger()
		resp.Incomplete = uint32(n)
	}
	if v, ok := root.Get("warning message"); ok {
		text, _ := v.AsString()
		resp.Warning = string(text)
	}
	if v, ok := root.Get("tracker id"); ok {
		text, _ := v.AsString()
		resp.TrackerID = string(text)
	}

	if v, ok := root.Get("peers"); ok {
		switch v.Kind {
		case bencode.KindString:
			resp.Peers = append(resp.Peers, DecodeCompactIPv4(v.Str)...)
		case bencode.KindList:
			for _, entry := range v.List {
				ipVal, ok := entry.Get("ip")
				if !ok {
					continue
				}
				ipStr, ok := ipVal.AsString()
				if !ok {
					continue
				}
				portVal, ok := entry.Get("port")
				if !ok {
					continue
				}
				port, ok := portVal.AsInteger()
				if !ok {
					continue
				}
				peer := PeerAddr{IP: net.ParseIP(string(ipStr)), Port: uint16(port)}
				if idVal, ok := entry.Get("peer id"); ok {
					if idBytes, ok := idVal.AsString(); ok && len(idBytes) == 20 {
						var id [20]byte
						copy(id[:], idBytes)
						peer.PeerID = &id
					}
				}
				resp.Peers = append(resp.Peers, peer)
			}
		default:
			return nil, apperrors.New(apperrors.MalformedAnnounce, "peers has an unrecognized shape")
		}
	}
	if v, ok := root.Get("peers6"); ok {
		b, ok := v.AsString()
		if !ok {
			return nil, apperrors.New(apperrors.MalformedAnnounce, "peers6 is not a byte string")
		}
		resp.Peers = append(resp.Peers, DecodeCompactIPv6(b)...)
	}

	return resp, nil
}

// ScrapeURL derives a scrape URL from an announce URL by replacing the
// final "/announce" path segment with "/scrape", per spec section 6.
// Grounded on original_source's makeScrapeUrl regex substitution
// ("/announce(?![^/])" → "/scrape"), reimplemented with a path-suffix
// check instead of a regex.
func ScrapeURL(announceURL string) (string, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ScrapeUnsupported, "cannot parse announce URL", err)
	}
	if !strings.HasSuffix(u.Path, "/announce") {
		return "", apperrors.New(apperrors.ScrapeUnsupported, "announce URL does not end in /announce")
	}
	u.Path = strings.TrimSuffix(u.Path, "/announce") + "/scrape"
	return u.String(), nil
}

func (c *HTTPClient) Scrape(announceURL string, hashes []InfoHash) (map[InfoHash]ScrapeStats, error) {
	scrapeURL, err := ScrapeURL(announceURL)
	if err != nil {
		return nil, err
	}

	if len(hashes) > 0 {
		sep := "?"
		if strings.Contains(scrapeURL, "?") {
			sep = "&"
		}
		var sb strings.Builder
		sb.WriteString(scrapeURL)
		sb.WriteString(sep)
		for i, h := range hashes {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString("info_hash=")
			sb.WriteString(percentEncodeUpper(h[:]))
		}
		scrapeURL = sb.String()
	}

	httpReq, err := http.NewRequest(http.MethodGet, scrapeURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.HttpTransport, "failed to build scrape request", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.HttpTransport, "scrape request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.New(apperrors.HttpStatus, fmt.Sprintf("tracker responded with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.HttpTransport, "failed to read scrape response body", err)
	}

	root, _, err := bencode.Decode(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.MalformedScrape, "failed to parse scrape response", err)
	}

	filesVal, ok := root.Get("files")
	if !ok || filesVal.Kind != bencode.KindDict {
		return nil, apperrors.New(apperrors.MalformedScrape, "scrape response has no files dict")
	}

	out := make(map[InfoHash]ScrapeStats, len(filesVal.Dict))
	for _, entry := range filesVal.Dict {
		if len(entry.Key) != 20 {
			continue
		}
		var hash InfoHash
		copy(hash[:], entry.Key)

		var stats ScrapeStats
		if v, ok := entry.Value.Get("complete"); ok {
			n, _ := v.AsInteger()
			stats.Complete = uint32(n)
		}
		if v, ok := entry.Value.Get("downloaded"); ok {
			n, _ := v.AsInteger()
			stats.Downloaded = uint32(n)
		}
		if v, ok := entry.Value.Get("incomplete"); ok {
			n, _ := v.AsInteger()
			stats.Incomplete = uint32(n)
		}
		if v, ok := entry.Value.Get("name"); ok {
			name, _ := v.AsString()
			stats.Name = string(name)
		}
		out[hash] = stats
	}
	return out, nil
}
