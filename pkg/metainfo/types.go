// Package metainfo parses .torrent files (bencode) and magnet URIs into a
// canonical in-memory Metainfo record, deriving the 20-byte infohash from
// the exact byte span of the source "info" value rather than a
// re-encoded form.
//
// Grounded on the teacher's pkg/metainfo/torrent_file_v1.go, corrected:
// the teacher computes the infohash from entry.Value.Serialize() (a
// re-encode of the parsed info dict), which spec section 4.2/8 forbids —
// a source torrent with non-canonical info-dict byte ordering would hash
// to a different infohash than the swarm it actually belongs to. This
// port instead threads the bencode decoder's captured raw span through to
// sha1.Sum.
package metainfo

import (
	"bytes"
	"encoding/hex"
)

// InfoHash is the 20-byte SHA-1 digest of a torrent's raw "info" value.
// It is the shared identity type also used by pkg/tracker.
type InfoHash [20]byte

func (h InfoHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Less gives InfoHash a total, byte-lexicographic ordering.
func (h InfoHash) Less(other InfoHash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

func (h InfoHash) String() string { return h.Hex() }

// FileEntry describes one file within a (possibly multi-file) torrent.
// Offset is the cumulative length of every preceding entry; single-file
// torrents have exactly one FileEntry with Offset 0.
type FileEntry struct {
	Path   []string
	Length uint64
	Offset uint64
}

// InfoDictionary is the parsed "info" dict of a .torrent file.
type InfoDictionary struct {
	Name        []byte
	PieceLength uint32
	Pieces      [][20]byte
	Files       []FileEntry
	RawSlice    []byte
}

// Tier is an ordered list of announce URLs a client exhausts before
// falling through to the next tier.
type Tier []string

// Metainfo is the canonical, decoded form of a .torrent file or magnet
// URI. When Metainfo was built from a magnet URI, Info carries at most a
// Name (no PieceLength/Pieces/Files), per spec section 4.2 — metadata
// acquisition from peers is an out-of-scope collaborator's job.
type Metainfo struct {
	Info         InfoDictionary
	AnnounceList []Tier
	InfoHash     InfoHash
}
