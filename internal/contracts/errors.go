package contracts

import "errors"

// ErrUnavailable is the uniform provider-boundary failure: timeouts, empty
// payloads, and malformed schema all wrap it. The chain treats any tier
// error wrapping ErrUnavailable as "fall through to the next tier".
var ErrUnavailable = errors.New("provider unavailable")

// IsUnavailable reports whether an error is a provider-boundary failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// ErrReplayDivergence marks a replayed cycle whose tags differ from the
// archived live tags. Always surfaced, never auto-corrected: it indicates a
// funnel or feature regression, not expected variance.
var ErrReplayDivergence = errors.New("replay divergence")
