package mbus

import (
	"errors"
	"fmt"
)

// Kind classifies why a telegram could not be decoded.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnsupported covers unknown CI fields, AFL variants and encryption modes.
	KindUnsupported
	// KindMissingKey means the payload is encrypted and no key is registered.
	KindMissingKey
	// KindWrongKey means decryption did not produce the expected check bytes.
	KindWrongKey
	// KindMalformedRecord wraps a failure of the record decoder.
	KindMalformedRecord
	// KindTruncated means the telegram ended before a structure was complete.
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindMissingKey:
		return "missing key"
	case KindWrongKey:
		return "wrong key"
	case KindMalformedRecord:
		return "malformed record"
	case KindTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any DecodingError of the same kind.
var (
	ErrUnsupported     = &DecodingError{Kind: KindUnsupported}
	ErrMissingKey      = &DecodingError{Kind: KindMissingKey}
	ErrWrongKey        = &DecodingError{Kind: KindWrongKey}
	ErrMalformedRecord = &DecodingError{Kind: KindMalformedRecord}
	ErrTruncated       = &DecodingError{Kind: KindTruncated}
)

// DecodingError is the single failure type returned by Decoder.Decode.
type DecodingError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *DecodingError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind.
func (e *DecodingError) Is(target error) bool {
	t, ok := target.(*DecodingError)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first DecodingError in err's chain.
func KindOf(err error) Kind {
	var de *DecodingError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

func newError(kind Kind, err error, format string, args ...any) *DecodingError {
	return &DecodingError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func unsupportedf(format string, args ...any) *DecodingError {
	return newError(KindUnsupported, nil, format, args...)
}

func truncatedf(format string, args ...any) *DecodingError {
	return newError(KindTruncated, nil, format, args...)
}
