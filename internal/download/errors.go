package download

import (
	"errors"

	ioutils "github.com/handiism/model-downloader/internal/io"
)

var (
	// ErrAlreadyInProgress is returned by Start when the file is already
	// queued or downloading, and by Clear for tasks that are still active.
	// Callers usually ignore it.
	ErrAlreadyInProgress = errors.New("download already in progress")

	// ErrNotFound is returned by control operations on an untracked file.
	ErrNotFound = errors.New("download not found")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("registry closed")
)

// TransferError describes why a transfer failed. It is delivered through
// the notification pipeline, never returned by a control operation.
type TransferError struct {
	// Reason names the stage that failed: "open", "request", "transfer",
	// "verify" or "commit".
	Reason string

	// Err is the underlying cause.
	Err error
}

func (e *TransferError) Error() string {
	return e.Reason + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// IsVerification reports whether the transfer completed but the bytes did
// not match the expected size or checksum.
func (e *TransferError) IsVerification() bool {
	return errors.Is(e.Err, ioutils.ErrSizeMismatch) || errors.Is(e.Err, ioutils.ErrChecksumMismatch)
}

func transferError(reason string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}
	return &TransferError{Reason: reason, Err: err}
}
