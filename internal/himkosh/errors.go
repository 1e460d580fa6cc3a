package himkosh

import (
	"errors"
	"fmt"
)

// ErrKeyNotConfigured means the shared-secret key file is missing or
// malformed. This is a deployment problem, not a message problem.
var ErrKeyNotConfigured = errors.New("himkosh: encryption key not configured")

// ErrChecksumMismatch means a received payload failed integrity
// verification. The message must be rejected without any state change.
var ErrChecksumMismatch = errors.New("himkosh: checksum mismatch")

// CryptoError wraps a failure inside a cipher operation, distinct from a
// missing key or a bad checksum so callers can tell "fix the deployment"
// apart from "reject this message".
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("himkosh: %s failed: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}
