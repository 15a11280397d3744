package privileged

import "errors"

// Sentinel error kinds for this package.
var (
	ErrProvider   = errors.New("privileged provider failed")
	ErrConnection = errors.New("privileged store connection failed")
)
