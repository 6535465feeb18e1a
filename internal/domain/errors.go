package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures seen while transferring depot content.
type ErrorKind int

const (
	// DeliveryUnavailable: the remote fetch failed. Aborts the current manifest.
	DeliveryUnavailable ErrorKind = iota + 1
	// FilesystemError: a directory or file could not be created or written. Aborts the current file.
	FilesystemError
	// MalformedManifestEntry: a file, chunk or sub-item is missing required fields. Skipped.
	MalformedManifestEntry
	// ChannelClosed: the owner side of a control channel is gone.
	ChannelClosed
)

func (k ErrorKind) String() string {
	switch k {
	case DeliveryUnavailable:
		return "delivery unavailable"
	case FilesystemError:
		return "filesystem error"
	case MalformedManifestEntry:
		return "malformed manifest entry"
	case ChannelClosed:
		return "channel closed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a *TransferError of the same kind.
var (
	ErrDeliveryUnavailable = &TransferError{Kind: DeliveryUnavailable}
	ErrFilesystem          = &TransferError{Kind: FilesystemError}
	ErrMalformedEntry      = &TransferError{Kind: MalformedManifestEntry}
	ErrChannelClosed       = &TransferError{Kind: ChannelClosed}
)

// ErrNotFound is returned by the catalog when an app is unknown.
var ErrNotFound = errors.New("not found")

// TransferError carries the failure kind along with the operation that failed.
type TransferError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewTransferError(kind ErrorKind, op string, err error) *TransferError {
	return &TransferError{Kind: kind, Op: op, Err: err}
}

func (e *TransferError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is matches any TransferError with the same Kind, so the sentinels above work with errors.Is.
func (e *TransferError) Is(target error) bool {
	t, ok := target.(*TransferError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first TransferError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// DepotFailure is one depot whose manifest could not be fetched.
type DepotFailure struct {
	DepotID uint32
	Err     error
}

// ManifestFetchError is returned alongside the manifests that were fetched
// when only some depots failed.
type ManifestFetchError struct {
	Failed []DepotFailure
}

func (e *ManifestFetchError) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		msgs = append(msgs, fmt.Sprintf("depot %d: %v", f.DepotID, f.Err))
	}
	return fmt.Sprintf("%d manifest(s) unavailable: %s", len(e.Failed), strings.Join(msgs, "; "))
}

func (e *ManifestFetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}
