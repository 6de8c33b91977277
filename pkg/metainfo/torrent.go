package metainfo

import (
	"crypto/sha1"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
	"github.com/agaabrieel/trackercore/pkg/bencode"
)

// Load parses a .torrent file's raw bytes into a Metainfo, per spec
// section 4.2's fromTorrent contract.
func Load(data []byte) (*Metainfo, error) {
	root, infoSpan, err := bencode.Decode(data, bencode.WithInfoSliceCapture())
	if err != nil {
		return nil, err
	}
	if root.Kind != bencode.KindDict {
		return nil, apperrors.New(apperrors.TypeMismatch, "root value must be a dict")
	}

	infoVal, ok := root.Get("info")
	if !ok {
		return nil, apperrors.New(apperrors.MissingField, "info")
	}
	if infoVal.Kind != bencode.KindDict {
		return nil, apperrors.New(apperrors.TypeMismatch, "info")
	}
	if !infoSpan.Valid {
		return nil, apperrors.New(apperrors.MalformedBencode, "info slice was not captured")
	}

	info, err := parseInfoDict(infoVal, infoSpan.Bytes(data))
	if err != nil {
		return nil, err
	}

	m := &Metainfo{
		Info:     *info,
		InfoHash: InfoHash(sha1.Sum(info.RawSlice)),
	}

	if announceList, ok := root.Get("announce-list"); ok {
		tiers, err := parseAnnounceList(announceList)
		if err != nil {
			return nil, err
		}
		m.AnnounceList = tiers
	} else if announce, ok := root.Get("announce"); ok {
		url, ok := announce.AsString()
		if !ok {
			return nil, apperrors.New(apperrors.TypeMismatch, "announce")
		}
		m.AnnounceList = []Tier{{string(url)}}
	}

	return m, nil
}

func parseInfoDict(v bencode.Value, raw []byte) (*InfoDictionary, error) {
	name, ok := v.Get("name")
	if !ok {
		return nil, apperrors.New(apperrors.MissingField, "info.name")
	}
	nameBytes, ok := name.AsString()
	if !ok {
		return nil, apperrors.New(apperrors.TypeMismatch, "info.name")
	}

	pieceLenVal, ok := v.Get("piece length")
	if !ok {
		return nil, apperrors.New(apperrors.MissingField, "info.piece length")
	}
	pieceLen, ok := pieceLenVal.AsInteger()
	if !ok || pieceLen <= 0 || pieceLen > int64(^uint32(0)) {
		return nil, apperrors.New(apperrors.TypeMismatch, "info.piece length")
	}

	piecesVal, ok := v.Get("pieces")
	if !ok {
		return nil, apperrors.New(apperrors.MissingField, "info.pieces")
	}
	piecesBytes, ok := piecesVal.AsString()
	if !ok || len(piecesBytes)%20 != 0 {
		return nil, apperrors.New(apperrors.TypeMismatch, "info.pieces")
	}
	numPieces := len(piecesBytes) / 20
	pieces := make([][20]byte, numPieces)
	for i := 0; i < numPieces; i++ {
		copy(pieces[i][:], piecesBytes[i*20:(i+1)*20])
	}

	var files []FileEntry
	if lengthVal, ok := v.Get("length"); ok {
		length, ok := lengthVal.AsInteger()
		if !ok || length <= 0 {
			return nil, apperrors.New(apperrors.TypeMismatch, "info.length")
		}
		files = []FileEntry{{Path: []string{string(nameBytes)}, Length: uint64(length), Offset: 0}}
	} else if filesVal, ok := v.Get("files"); ok {
		list, ok := filesVal.AsList()
		if !ok || len(list) == 0 {
			return nil, apperrors.New(apperrors.TypeMismatch, "info.files")
		}
		var offset uint64
		for _, entry := range list {
			fileLenVal, ok := entry.Get("length")
			if !ok {
				return nil, apperrors.New(apperrors.MissingField, "info.files[].length")
			}
			fileLen, ok := fileLenVal.AsInteger()
			if !ok || fileLen < 0 {
				return nil, apperrors.New(apperrors.TypeMismatch, "info.files[].length")
			}
			pathVal, ok := entry.Get("path")
			if !ok {
				return nil, apperrors.New(apperrors.MissingField, "info.files[].path")
			}
			pathList, ok := pathVal.AsList()
			if !ok {
				return nil, apperrors.New(apperrors.TypeMismatch, "info.files[].path")
			}
			segments := make([]string, len(pathList))
			for i, seg := range pathList {
				segBytes, ok := seg.AsString()
				if !ok {
					return nil, apperrors.New(apperrors.TypeMismatch, "info.files[].path[]")
				}
				segments[i] = string(segBytes)
			}
			files = append(files, FileEntry{Path: segments, Length: uint64(fileLen), Offset: offset})
			offset += uint64(fileLen)
		}
	} else {
		return nil, apperrors.New(apperrors.MissingField, "info.length or info.files")
	}

	if err := validatePieceLayout(files, uint32(pieceLen), numPieces); err != nil {
		return nil, err
	}

	return &InfoDictionary{
		Name:        nameBytes,
		PieceLength: uint32(pieceLen),
		Pieces:      pieces,
		Files:       files,
		RawSlice:    raw,
	}, nil
}

func validatePieceLayout(files []FileEntry, pieceLength uint32, numPieces int) error {
	var total uint64
	for _, f := range files {
		total += f.Length
	}
	if numPieces == 0 {
		if total != 0 {
			return apperrors.New(apperrors.InvalidPieceLayout, "no pieces but total file length is nonzero")
		}
		return nil
	}
	full := uint64(pieceLength) * uint64(numPieces-1)
	if total < full {
		return apperrors.New(apperrors.InvalidPieceLayout, "total file length too small for piece count")
	}
	remainder := total - full
	if remainder < 1 || remainder > uint64(pieceLength) {
		return apperrors.New(apperrors.InvalidPieceLayout, "last-piece remainder out of range")
	}
	return nil
}

func parseAnnounceList(v bencode.Value) ([]Tier, error) {
	tierLists, ok := v.AsList()
	if !ok {
		return nil, apperrors.New(apperrors.TypeMismatch, "announce-list")
	}
	tiers := make([]Tier, 0, len(tierLists))
	for _, tierVal := range tierLists {
		urls, ok := tierVal.AsList()
		if !ok {
			return nil, apperrors.New(apperrors.TypeMismatch, "announce-list[]")
		}
		tier := make(Tier, 0, len(urls))
		for _, u := range urls {
			s, ok := u.AsString()
			if !ok {
				return nil, apperrors.New(apperrors.TypeMismatch, "announce-list[][]")
			}
			tier = append(tier, string(s))
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}
