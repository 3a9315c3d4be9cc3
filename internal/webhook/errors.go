package webhook

import "fmt"

// ErrorKind is the closed set of failures a delivery can end in.
type ErrorKind int

const (
	// KindAuthentication: missing or invalid signature. 403, nothing stored.
	KindAuthentication ErrorKind = iota + 1
	// KindPayloadFormat: body or event could not be decoded. 200 with status "Error".
	KindPayloadFormat
	// KindStorage: the message log could not be written. 200 with status "Error".
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication_failure"
	case KindPayloadFormat:
		return "payload_format_error"
	case KindStorage:
		return "storage_failure"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

// Error is a classified delivery failure. Message is what the client sees;
// Err is the underlying cause and is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func authError(err error) *Error {
	return &Error{Kind: KindAuthentication, Message: msgInvalidSig, Err: err}
}

func payloadError(msg string, err error) *Error {
	return &Error{Kind: KindPayloadFormat, Message: msg, Err: err}
}

func storageError(err error) *Error {
	return &Error{Kind: KindStorage, Message: msgSaveFailed, Err: err}
}
