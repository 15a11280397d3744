package ranking

import "errors"

// Sentinel error kinds for this package.
var (
	ErrStore            = errors.New("ranking store failure")
	ErrPrivilegedLookup = errors.New("privileged player lookup failed")
)
