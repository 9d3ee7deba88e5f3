package model

import (
	"errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidSession = errors.New("invalid session")
	ErrBadRequest     = errors.New("bad request")
	ErrRateLimited    = errors.New("rate limited")
)
