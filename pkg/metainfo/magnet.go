package metainfo

import (
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
	"github.com/agaabrieel/trackercore/pkg/utils"
)

// LoadMagnet parses a magnet: URI into a Metainfo, per spec section 4.2's
// fromMagnet contract. Only InfoHash, AnnounceList and Info.Name (from
// dn, when present) are populated; PieceLength, Pieces and Files stay
// empty, since piece layout is unknown until metadata is fetched from
// peers, which is out of scope here.
func LoadMagnet(uri string) (*Metainfo, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidInfohashEncoding, "malformed magnet URI", err)
	}
	q := u.RawQuery
	values, err := url.ParseQuery(q)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidInfohashEncoding, "malformed magnet query", err)
	}

	var hash InfoHash
	found := false
	for _, xt := range values["xt"] {
		const prefix = "urn:btih:"
		if !strings.HasPrefix(xt, prefix) {
			continue
		}
		h, err := decodeInfohash(xt[len(prefix):])
		if err != nil {
			return nil, err
		}
		hash = h
		found = true
		break
	}
	if !found {
		return nil, apperrors.New(apperrors.MissingField, "xt=urn:btih:")
	}

	m := &Metainfo{InfoHash: hash}

	if dn := values.Get("dn"); dn != "" {
		m.Info.Name = []byte(dn)
	}

	var trackers []string
	for _, tr := range values["tr"] {
		if !utils.Contains(trackers, tr) {
			trackers = append(trackers, tr)
		}
	}
	for _, tr := range trackers {
		m.AnnounceList = append(m.AnnounceList, Tier{tr})
	}

	return m, nil
}

func decodeInfohash(s string) (InfoHash, error) {
	var h InfoHash
	switch len(s) {
	case 40:
		b, err := hex.DecodeString(s)
		if err != nil {
			return h, apperrors.Wrap(apperrors.InvalidInfohashEncoding, "invalid hex infohash", err)
		}
		copy(h[:], b)
		return h, nil
	case 32:
		b, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(s))
		if err != nil {
			return h, apperrors.Wrap(apperrors.InvalidInfohashEncoding, "invalid base32 infohash", err)
		}
		copy(h[:], b)
		return h, nil
	default:
		return h, apperrors.New(apperrors.UnsupportedMagnetHashEncoding, "infohash must be 40 hex or 32 base32 characters")
	}
}
