package service

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrStaleSelection      = errors.New("selection is no longer current")
	ErrModelNotFound       = errors.New("model not found in catalog")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAudio        = errors.New("audio has no duration")
	ErrInvalidPitch        = errors.New("unsupported pitch offset")
	ErrDispatchTransient   = errors.New("conversion service temporarily unavailable")
	ErrDispatchFailed      = errors.New("conversion request rejected")
)
