// Package bencode implements the bencode serialization grammar used by
// .torrent files and tracker HTTP responses: signed integers, byte
// strings, lists, and dictionaries. It supports strict decoding, a
// deterministic canonical encoder, and a "slice capture" decode mode that
// records the raw byte span of the top-level "info" dictionary value so
// callers can hash it without re-encoding it.
//
// Grounded on the two divergent early drafts in the teacher repo
// (internal/parser/parser.go, internal/parser/types.go), merged into one
// engine and generalized to the strict grammar this package documents:
// duplicate dict keys are rejected, key order is not enforced on decode,
// and Encode always emits byte-lexicographic key order.
package bencode

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindInteger
	KindString
	KindList
	KindDict
)

// DictEntry is one key/value pair of a Dict-kind Value. Keys are raw
// bytes, not text — bencode dictionary keys have no defined charset.
type DictEntry struct {
	Key   []byte
	Value Value
}

// Value is the bencode sum type. Only the field matching Kind is
// meaningful; the zero Value has Kind == KindNone, which Encode rejects.
type Value struct {
	Kind Kind
	Int  int64
	Str  []byte
	List []Value
	Dict []DictEntry
}

func Integer(v int64) Value  { return Value{Kind: KindInteger, Int: v} }
func String(v []byte) Value  { return Value{Kind: KindString, Str: v} }
func Text(v string) Value    { return Value{Kind: KindString, Str: []byte(v)} }
func List(v []Value) Value   { return Value{Kind: KindList, List: v} }
func Dict(v []DictEntry) Value {
	return Value{Kind: KindDict, Dict: v}
}

// IsZero reports whether v is the uninitialized KindNone value.
func (v Value) IsZero() bool { return v.Kind == KindNone }

// Get returns the value stored under key in a Dict-kind Value, and
// whether it was present. Get on a non-Dict Value always returns false.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindDict {
		return Value{}, false
	}
	for _, e := range v.Dict {
		if string(e.Key) == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// AsString returns the raw bytes of a String-kind Value.
func (v Value) AsString() ([]byte, bool) {
	if v.Kind != KindString {
		return nil, false
	}
	return v.Str, true
}

// AsInteger returns the int64 held by an Integer-kind Value.
func (v Value) AsInteger() (int64, bool) {
	if v.Kind != KindInteger {
		return 0, false
	}
	return v.Int, true
}

// AsList returns the elements of a List-kind Value.
func (v Value) AsList() ([]Value, bool) {
	if v.Kind != KindList {
		return nil, false
	}
	return v.List, true
}

// Equal reports deep structural equality, used by the round-trip property
// tests (decode(encode(v)) == v).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNone:
		return true
	case KindInteger:
		return a.Int == b.Int
	case KindString:
		return string(a.Str) == string(b.Str)
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(a.Dict) != len(b.Dict) {
			return false
		}
		for i := range a.Dict {
			if string(a.Dict[i].Key) != string(b.Dict[i].Key) {
				return false
			}
			if !Equal(a.Dict[i].Value, b.Dict[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Span is a [Begin, End) byte range into the buffer that was decoded.
// Valid is false when slice capture was requested but no top-level
// "info" key was present.
type Span struct {
	Begin, End int
	Valid      bool
}

// Bytes returns the captured slice of src, or nil if the span is not
// valid. src must be the same buffer that was passed to Decode.
func (s Span) Bytes(src []byte) []byte {
	if !s.Valid {
		return nil
	}
	return src[s.Begin:s.End]
}
