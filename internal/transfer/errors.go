package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrChannelClosed     = errors.New("channel closed")
	ErrBufferTimeout     = errors.New("buffer drain timeout")
	ErrSizeMismatch      = errors.New("size mismatch")
	ErrUnexpectedChunk   = errors.New("chunk before start")
	ErrMalformedControl  = errors.New("malformed control message")
	ErrFileTooLarge      = errors.New("file exceeds size limit")
	ErrUnknownCodec      = errors.New("unknown codec")
	ErrTransferDeclined  = errors.New("receiver declined the transfer")
	ErrTransferCancelled = errors.New("transfer cancelled by user")
	ErrPeerDisconnected  = errors.New("peer disconnected")
)

type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	if e.File != "" {
		if e.Details != "" {
			return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.File, e.Err, e.Details)
		}
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}

func WrapError(op string, err error, details string) *TransferError {
	return &TransferError{Op: op, Err: err, Details: details}
}
