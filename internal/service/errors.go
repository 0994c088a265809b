package service

import "errors"

// ErrForbidden is returned when the caller is authenticated but not allowed.
var ErrForbidden = errors.New("insufficient permissions")
