package bencode

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/agaabrieel/trackercore/pkg/apperrors"
)

// Encode renders v in canonical bencode form: integers with no leading
// zeros, dict keys in byte-lexicographic ascending order regardless of
// the order Value.Dict holds them in. Encoding a KindNone value is a
// programmer error and returns an EncodeNone error.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeInto(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeInto(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindInteger:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(v.Int, 10))
		buf.WriteByte('e')
		return nil
	case KindString:
		buf.WriteString(strconv.Itoa(len(v.Str)))
		buf.WriteByte(':')
		buf.Write(v.Str)
		return nil
	case KindList:
		buf.WriteByte('l')
		for _, item := range v.List {
			if err := encodeInto(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte('e')
		return nil
	case KindDict:
		entries := make([]DictEntry, len(v.Dict))
		copy(entries, v.Dict)
		sort.Slice(entries, func(i, j int) bool {
			return bytes.Compare(entries[i].Key, entries[j].Key) < 0
		})
		buf.WriteByte('d')
		for _, e := range entries {
			if err := encodeInto(buf, String(e.Key)); err != nil {
				return err
			}
			if err := encodeInto(buf, e.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('e')
		return nil
	default:
		return apperrors.New(apperrors.EncodeNone, "cannot encode a KindNone value")
	}
}
