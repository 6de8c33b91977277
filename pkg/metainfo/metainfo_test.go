package metainfo

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
)

func buildSingleFileTorrent(announce string) (data []byte, infoBytes []byte) {
	infoBytes = []byte("d6:lengthi10e4:name3:foo12:piece lengthi10e6:pieces20:AAAAAAAAAAAAAAAAAAAAe")
	var buf []byte
	buf = append(buf, 'd')
	buf = append(buf, []byte("8:announce")...)
	buf = append(buf, []byte(lengthPrefixed(announce))...)
	buf = append(buf, []byte("4:info")...)
	buf = append(buf, infoBytes...)
	buf = append(buf, 'e')
	return buf, infoBytes
}

func lengthPrefixed(s string) string {
	return itoa(len(s)) + ":" + s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestLoadSingleFileTorrent(t *testing.T) {
	data, infoBytes := buildSingleFileTorrent("http://tracker.example/announce")

	m, err := Load(data)
	require.NoError(t, err)

	assert.Equal(t, "foo", string(m.Info.Name))
	assert.Equal(t, uint32(10), m.Info.PieceLength)
	require.Len(t, m.Info.Pieces, 1)
	require.Len(t, m.Info.Files, 1)
	assert.Equal(t, uint64(10), m.Info.Files[0].Length)
	assert.Equal(t, []string{"foo"}, m.Info.Files[0].Path)

	require.Len(t, m.AnnounceList, 1)
	assert.Equal(t, Tier{"http://tracker.example/announce"}, m.AnnounceList[0])

	want := InfoHash(sha1.Sum(infoBytes))
	assert.Equal(t, want, m.InfoHash)
}

func TestLoadHashesRawSpanNotReencoded(t *testing.T) {
	// A non-canonical key order in the info dict ("pieces" before "name")
	// still must hash to the raw bytes on the wire, not a re-encoded
	// canonical form.
	info := []byte("d6:lengthi10e6:pieces20:AAAAAAAAAAAAAAAAAAAA4:name3:foo12:piece lengthi10ee")
	var buf []byte
	buf = append(buf, 'd')
	buf = append(buf, []byte("8:announce")...)
	buf = append(buf, []byte(lengthPrefixed("http://t/a"))...)
	buf = append(buf, []byte("4:info")...)
	buf = append(buf, info...)
	buf = append(buf, 'e')

	m, err := Load(buf)
	require.NoError(t, err)
	assert.Equal(t, InfoHash(sha1.Sum(info)), m.InfoHash)
}

func TestLoadMissingInfoField(t *testing.T) {
	_, err := Load([]byte("d8:announce10:http://t/ae"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.MissingField))
}

func TestLoadRejectsBadPieceLayout(t *testing.T) {
	// piece length 10, one 20-byte piece hash, but a total file length of
	// 25 doesn't fit: full=0, remainder=25 > pieceLength(10).
	info := []byte("d6:lengthi25e4:name3:foo12:piece lengthi10e6:pieces20:AAAAAAAAAAAAAAAAAAAAe")
	var buf []byte
	buf = append(buf, 'd')
	buf = append(buf, []byte("4:info")...)
	buf = append(buf, info...)
	buf = append(buf, 'e')

	_, err := Load(buf)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.InvalidPieceLayout))
}

func TestLoadMultiFileTorrent(t *testing.T) {
	info := []byte("d5:filesld6:lengthi5e4:pathl1:a1:beed6:lengthi5e4:pathl1:ceee" +
		"e4:name3:dir12:piece lengthi10e6:pieces20:AAAAAAAAAAAAAAAAAAAAe")
	var buf []byte
	buf = append(buf, 'd')
	buf = append(buf, []byte("4:info")...)
	buf = append(buf, info...)
	buf = append(buf, 'e')

	m, err := Load(buf)
	require.NoError(t, err)
	require.Len(t, m.Info.Files, 2)
	assert.Equal(t, []string{"a", "b"}, m.Info.Files[0].Path)
	assert.Equal(t, uint64(0), m.Info.Files[0].Offset)
	assert.Equal(t, []string{"c"}, m.Info.Files[1].Path)
	assert.Equal(t, uint64(5), m.Info.Files[1].Offset)
}

func TestLoadAnnounceListTakesPriorityOverAnnounce(t *testing.T) {
	info := []byte("d6:lengthi10e4:name3:foo12:piece lengthi10e6:pieces20:AAAAAAAAAAAAAAAAAAAAe")
	var buf []byte
	buf = append(buf, 'd')
	buf = append(buf, []byte("8:announce")...)
	buf = append(buf, []byte(lengthPrefixed("http://single/a"))...)
	buf = append(buf, []byte("13:announce-list")...)
	buf = append(buf, 'l')
	buf = append(buf, 'l')
	buf = append(buf, []byte(lengthPrefixed("http://tier1a/announce"))...)
	buf = append(buf, 'e')
	buf = append(buf, 'l')
	buf = append(buf, []byte(lengthPrefixed("http://tier2a/announce"))...)
	buf = append(buf, 'e')
	buf = append(buf, 'e')
	buf = append(buf, []byte("4:info")...)
	buf = append(buf, info...)
	buf = append(buf, 'e')

	m, err := Load(buf)
	require.NoError(t, err)
	require.Len(t, m.AnnounceList, 2)
	assert.Equal(t, Tier{"http://tier1a/announce"}, m.AnnounceList[0])
	assert.Equal(t, Tier{"http://tier2a/announce"}, m.AnnounceList[1])
}

func TestLoadMagnetHexInfohash(t *testing.T) {
	uri := "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&dn=foo&tr=udp%3A%2F%2Fhost%3A1234"
	m, err := LoadMagnet(uri)
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", m.InfoHash.Hex())
	assert.Equal(t, "foo", string(m.Info.Name))
	require.Len(t, m.AnnounceList, 1)
	assert.Equal(t, Tier{"udp://host:1234"}, m.AnnounceList[0])
}

func TestLoadMagnetBase32Infohash(t *testing.T) {
	// 32 base32 chars decode to 20 bytes.
	uri := "magnet:?xt=urn:btih:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	m, err := LoadMagnet(uri)
	require.NoError(t, err)
	assert.Equal(t, InfoHash{}, m.InfoHash)
}

func TestLoadMagnetDedupesTrackers(t *testing.T) {
	uri := "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567" +
		"&tr=udp%3A%2F%2Fhost%3A1&tr=udp%3A%2F%2Fhost%3A1&tr=udp%3A%2F%2Fhost%3A2"
	m, err := LoadMagnet(uri)
	require.NoError(t, err)
	require.Len(t, m.AnnounceList, 2)
}

func TestLoadMagnetMissingInfohash(t *testing.T) {
	_, err := LoadMagnet("magnet:?dn=foo")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.MissingField))
}

func TestLoadMagnetBadInfohashLength(t *testing.T) {
	_, err := LoadMagnet("magnet:?xt=urn:btih:deadbeef")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.UnsupportedMagnetHashEncoding))
}
