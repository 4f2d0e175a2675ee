package negotiation

import "errors"

var (
	ErrTimeout           = errors.New("negotiation timed out")
	ErrDeclined          = errors.New("peer declined or left")
	ErrSuperseded        = errors.New("superseded by a newer offer")
	ErrCancelled         = errors.New("negotiation cancelled")
	ErrRemoteDescription = errors.New("remote description rejected")
	ErrConnectionFailed  = errors.New("peer connection failed")
)
