package bencode

import (
	"github.com/agaabrieel/trackercore/pkg/apperrors"
)

// DecodeOption configures a Decode call.
type DecodeOption func(*decoder)

// WithInfoSliceCapture makes Decode record the [begin, end) byte span of
// the value under the root-level "info" key, if the root is a dict and
// that key is present at the top level. Nested "info" keys are ignored.
func WithInfoSliceCapture() DecodeOption {
	return func(d *decoder) { d.captureInfo = true }
}

type decoder struct {
	data        []byte
	pos         int
	captureInfo bool
	infoSpan    Span
	foundInfo   bool
}

// Decode parses the full input as a single bencode value. Trailing bytes
// after the top-level value are a TrailingData error (strict mode is
// always on, per spec).
func Decode(data []byte, opts ...DecodeOption) (Value, Span, error) {
	d := &decoder{data: data}
	for _, opt := range opts {
		opt(d)
	}

	val, err := d.decodeValue(0)
	if err != nil {
		return Value{}, Span{}, err
	}
	if d.pos != len(d.data) {
		return Value{}, Span{}, apperrors.NewAt(apperrors.TrailingData, d.pos, "trailing bytes after top-level value")
	}
	return val, d.infoSpan, nil
}

func (d *decoder) errAt(kind apperrors.Kind, msg string) error {
	return apperrors.NewAt(kind, d.pos, msg)
}

func (d *decoder) peek() (byte, bool) {
	if d.pos >= len(d.data) {
		return 0, false
	}
	return d.data[d.pos], true
}

func (d *decoder) decodeValue(depth int) (Value, error) {
	c, ok := d.peek()
	if !ok {
		return Value{}, d.errAt(apperrors.MalformedBencode, "unexpected end of input")
	}
	switch {
	case c == 'i':
		return d.decodeInteger()
	case c == 'l':
		return d.decodeList(depth)
	case c == 'd':
		return d.decodeDict(depth)
	case c >= '0' && c <= '9':
		return d.decodeString()
	default:
		return Value{}, d.errAt(apperrors.MalformedBencode, "unrecognized value tag")
	}
}

func (d *decoder) decodeInteger() (Value, error) {
	start := d.pos
	d.pos++ // consume 'i'

	neg := false
	if b, ok := d.peek(); ok && b == '-' {
		neg = true
		d.pos++
	}

	numStart := d.pos
	for {
		b, ok := d.peek()
		if !ok {
			return Value{}, d.errAt(apperrors.MalformedBencode, "unterminated integer")
		}
		if b == 'e' {
			break
		}
		if b < '0' || b > '9' {
			return Value{}, d.errAt(apperrors.MalformedBencode, "non-digit in integer")
		}
		d.pos++
	}
	digits := d.data[numStart:d.pos]
	if len(digits) == 0 {
		return Value{}, d.errAt(apperrors.MalformedBencode, "empty integer")
	}
	if neg && string(digits) == "0" {
		return Value{}, d.errAt(apperrors.MalformedBencode, "negative zero is not permitted")
	}
	if len(digits) > 1 && digits[0] == '0' {
		return Value{}, d.errAt(apperrors.MalformedBencode, "leading zero in integer")
	}

	var mag uint64
	for _, ch := range digits {
		digit := uint64(ch - '0')
		if mag > (1<<64-1-digit)/10 {
			return Value{}, apperrors.NewAt(apperrors.IntegerOverflow, start, "integer magnitude overflows 64 bits")
		}
		mag = mag*10 + digit
	}

	var v int64
	if neg {
		if mag > 1<<63 {
			return Value{}, apperrors.NewAt(apperrors.IntegerOverflow, start, "negative integer overflows int64")
		}
		v = -int64(mag)
	} else {
		if mag > 1<<63-1 {
			return Value{}, apperrors.NewAt(apperrors.IntegerOverflow, start, "integer overflows int64")
		}
		v = int64(mag)
	}

	d.pos++ // consume 'e'
	return Integer(v), nil
}

func (d *decoder) decodeString() (Value, error) {
	start := d.pos
	lenStart := d.pos
	for {
		b, ok := d.peek()
		if !ok {
			return Value{}, d.errAt(apperrors.MalformedBencode, "unterminated string length")
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' {
			return Value{}, d.errAt(apperrors.MalformedBencode, "non-digit in string length")
		}
		d.pos++
	}
	digits := d.data[lenStart:d.pos]
	if len(digits) > 1 && digits[0] == '0' {
		return Value{}, d.errAt(apperrors.MalformedBencode, "leading zero in string length")
	}

	var length uint64
	for _, ch := range digits {
		digit := uint64(ch - '0')
		if length > (1<<64-1-digit)/10 {
			return Value{}, apperrors.NewAt(apperrors.IntegerOverflow, start, "string length overflows")
		}
		length = length*10 + digit
	}

	d.pos++ // consume ':'
	if uint64(len(d.data)-d.pos) < length {
		return Value{}, d.errAt(apperrors.MalformedBencode, "string runs past end of buffer")
	}

	strBytes := d.data[d.pos : d.pos+int(length)]
	d.pos += int(length)
	return String(strBytes), nil
}

func (d *decoder) decodeList(depth int) (Value, error) {
	d.pos++ // consume 'l'
	var items []Value
	for {
		b, ok := d.peek()
		if !ok {
			return Value{}, d.errAt(apperrors.MalformedBencode, "unterminated list")
		}
		if b == 'e' {
			d.pos++
			break
		}
		v, err := d.decodeValue(depth + 1)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	return List(items), nil
}

func (d *decoder) decodeDict(depth int) (Value, error) {
	d.pos++ // consume 'd'
	var entries []DictEntry
	seen := make(map[string]struct{})
	for {
		b, ok := d.peek()
		if !ok {
			return Value{}, d.errAt(apperrors.MalformedBencode, "unterminated dict")
		}
		if b == 'e' {
			d.pos++
			break
		}
		if b < '0' || b > '9' {
			return Value{}, d.errAt(apperrors.MalformedBencode, "dict key must be a byte string")
		}
		keyVal, err := d.decodeString()
		if err != nil {
			return Value{}, err
		}
		key := keyVal.Str
		keyStr := string(key)
		if _, dup := seen[keyStr]; dup {
			return Value{}, d.errAt(apperrors.DuplicateDictKey, "duplicate dict key: "+keyStr)
		}
		seen[keyStr] = struct{}{}

		captureThis := d.captureInfo && depth == 0 && !d.foundInfo && keyStr == "info"
		valueStart := d.pos

		val, err := d.decodeValue(depth + 1)
		if err != nil {
			return Value{}, err
		}

		if captureThis {
			d.infoSpan = Span{Begin: valueStart, End: d.pos, Valid: true}
			d.foundInfo = true
		}

		entries = append(entries, DictEntry{Key: key, Value: val})
	}
	return Dict(entries), nil
}
