// Package apperrors defines the structured error taxonomy shared by the
// bencode, metainfo, and tracker packages. Every recoverable failure the
// core reports crosses the module boundary as an *Error rather than a bare
// fmt.Errorf chain, so callers can recover the failure kind with Is
// instead of string-matching a message.
package apperrors

import "fmt"

// Kind identifies a failure category. Values are grouped by the component
// that raises them; the grouping is informational, callers should switch
// on Kind rather than on which package an error came from.
type Kind uint8

const (
	// bencode decode errors
	MalformedBencode Kind = iota
	TrailingData
	IntegerOverflow
	DuplicateDictKey

	// metainfo / magnet errors
	MissingField
	TypeMismatch
	InvalidInfohashEncoding
	UnsupportedMagnetHashEncoding
	InvalidPieceLayout

	// HTTP tracker errors
	HttpTransport
	HttpStatus
	MalformedAnnounce
	MalformedScrape
	TrackerFailure
	ScrapeUnsupported

	// UDP tracker errors
	UdpUrl
	UdpResolve
	UdpSocket
	UdpSend
	UdpRecv
	UdpProtocolError
	UdpShortResponse
	UdpExhausted

	// programmer errors
	EmptyTier
	EncodeNone
)

func (k Kind) String() string {
	switch k {
	case MalformedBencode:
		return "MalformedBencode"
	case TrailingData:
		return "TrailingData"
	case IntegerOverflow:
		return "IntegerOverflow"
	case DuplicateDictKey:
		return "DuplicateDictKey"
	case MissingField:
		return "MissingField"
	case TypeMismatch:
		return "TypeMismatch"
	case InvalidInfohashEncoding:
		return "InvalidInfohashEncoding"
	case UnsupportedMagnetHashEncoding:
		return "UnsupportedMagnetHashEncoding"
	case InvalidPieceLayout:
		return "InvalidPieceLayout"
	case HttpTransport:
		return "HttpTransport"
	case HttpStatus:
		return "HttpStatus"
	case MalformedAnnounce:
		return "MalformedAnnounce"
	case MalformedScrape:
		return "MalformedScrape"
	case TrackerFailure:
		return "TrackerFailure"
	case ScrapeUnsupported:
		return "ScrapeUnsupported"
	case UdpUrl:
		return "UdpUrl"
	case UdpResolve:
		return "UdpResolve"
	case UdpSocket:
		return "UdpSocket"
	case UdpSend:
		return "UdpSend"
	case UdpRecv:
		return "UdpRecv"
	case UdpProtocolError:
		return "UdpProtocolError"
	case UdpShortResponse:
		return "UdpShortResponse"
	case UdpExhausted:
		return "UdpExhausted"
	case EmptyTier:
		return "EmptyTier"
	case EncodeNone:
		return "EncodeNone"
	default:
		return "UnknownKind"
	}
}

// Error is the single error type used across the core. Offset is the byte
// position a parse failure stopped at; it is -1 when not applicable.
type Error struct {
	Kind    Kind
	Offset  int
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Offset: -1, Message: message}
}

func NewAt(kind Kind, offset int, message string) *Error {
	return &Error{Kind: kind, Offset: offset, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Offset: -1, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s at offset %d: %s: %v", e.Kind, e.Offset, e.Message, e.Err)
		}
		return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		e, ok := err.(*Error)
		if !ok {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
