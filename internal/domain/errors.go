package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidPayload = errors.New("invalid event payload")
	ErrDuplicateEvent = errors.New("event already processed")
)
