package session

import (
	"context"
	"net"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	textCodePolicyDenied    = "POLICY_DENIED"
	textCodeProfileNotFound = "PROFILE_NOT_FOUND"
	textCodeFetchTimeout    = "PROFILE_FETCH_TIMEOUT"
	textCodeKeyNotFound     = "KV_KEY_NOT_FOUND"
)

// ErrPolicyDenied is returned when the backend rejects profile access for
// policy reasons. It terminates the session.
var ErrPolicyDenied = errors.New("profile access denied by policy", errors.CategoryAuthz).
	WithTextCode(textCodePolicyDenied).
	WithCode(errors.CodeForbidden)

// ErrProfileNotFound is returned when the backend explicitly reports that no
// profile row exists for the user. It terminates the session.
var ErrProfileNotFound = errors.New("user profile not found", errors.CategoryNotFound).
	WithTextCode(textCodeProfileNotFound).
	WithCode(errors.CodeNotFound)

// ErrFetchTimeout marks a single resolution attempt that lost the race
// against the fetch timeout. Transient; absorbed by retry and fallback.
var ErrFetchTimeout = errors.New("profile fetch timed out", errors.CategoryOperation).
	WithTextCode(textCodeFetchTimeout)

// ErrKeyNotFound is the KeyValueStore miss signal.
var ErrKeyNotFound = errors.New("key not found", errors.CategoryNotFound).
	WithTextCode(textCodeKeyNotFound).
	WithCode(errors.CodeNotFound)

// IsHardFailure reports whether err must terminate the session.
func IsHardFailure(err error) bool {
	return IsPolicyDenial(err) || IsProfileNotFoundError(err)
}

// IsPolicyDenial detects access-policy rejections. A generic record-not-found
// from the backend also lands here: a single-row query that comes back empty
// under row-level security is indistinguishable from a policy block, and
// denying is the safe reading.
func IsPolicyDenial(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		if richErr.TextCode == textCodePolicyDenied {
			return true
		}
		if richErr.TextCode == textCodeProfileNotFound {
			return false
		}
		if richErr.Category == errors.CategoryAuthz || richErr.Category == errors.CategoryAuth {
			return true
		}
		if richErr.Category == errors.CategoryNotFound {
			return true
		}
	}

	return strings.Contains(err.Error(), "row-level security") ||
		strings.Contains(err.Error(), "policy")
}

// IsProfileNotFoundError detects an explicit "row does not exist" report.
func IsProfileNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == textCodeProfileNotFound
	}

	return false
}

// IsTimeoutError will check for attempt timeouts and deadline expirations.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == textCodeFetchTimeout {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(err.Error(), "timeout") ||
		strings.Contains(err.Error(), "timed out")
}

// IsNetworkError will check for connectivity failures.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return strings.Contains(err.Error(), "network") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host")
}
