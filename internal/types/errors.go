package types

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidDriver   = errors.New("invalid database driver")
	ErrInvalidSettings = errors.New("invalid frequency settings")
)
