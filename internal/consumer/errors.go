package consumer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProtocol is the parent of every negotiation failure. A session that
	// failed negotiation must not be used for decoding.
	ErrProtocol        = errors.New("consumer: protocol error")
	ErrShortRead       = fmt.Errorf("%w: short property record", ErrProtocol)
	ErrUnknownLayout   = fmt.Errorf("%w: unknown camera layout", ErrProtocol)
	ErrInvalidGeometry = fmt.Errorf("%w: invalid geometry", ErrProtocol)
	ErrUnknownEncoding = fmt.Errorf("%w: unknown pixel encoding", ErrProtocol)

	ErrNoDataPending       = errors.New("consumer: no data pending")
	ErrTransportReadFailed = errors.New("consumer: transport read failed")
	ErrCorruptPayload      = errors.New("consumer: corrupt payload")

	ErrLayoutMismatch    = errors.New("consumer: layout mismatch")
	ErrNotNegotiated     = errors.New("consumer: session not negotiated")
	ErrAlreadyNegotiated = errors.New("consumer: session already negotiated")

	ErrInvalidNotification = errors.New("consumer: invalid image notification")
	ErrPartialGroup        = fmt.Errorf("%w: partial metadata group", ErrInvalidNotification)
)

// LayoutMismatchError reports a typed read invoked against a session
// negotiated for a different layout.
type LayoutMismatchError struct {
	Op       string
	Have     CameraLayout
	Accepted []CameraLayout
}

func (e *LayoutMismatchError) Error() string {
	want := make([]string, 0, len(e.Accepted))
	for _, l := range e.Accepted {
		want = append(want, l.String())
	}
	return fmt.Sprintf("consumer: %s needs layout %s, session negotiated %s",
		e.Op, strings.Join(want, "|"), e.Have)
}

func (e *LayoutMismatchError) Unwrap() error {
	return ErrLayoutMismatch
}

// failureKind maps an error to a short metrics label.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrNoDataPending):
		return "no_data"
	case errors.Is(err, ErrTransportReadFailed):
		return "transport_read"
	case errors.Is(err, ErrCorruptPayload):
		return "corrupt_payload"
	case errors.Is(err, ErrLayoutMismatch):
		return "layout_mismatch"
	case errors.Is(err, ErrNotNegotiated):
		return "not_negotiated"
	default:
		return "other"
	}
}
