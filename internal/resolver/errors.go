package resolver

import "errors"

// Failure kinds surfaced to the user when resolution yields no tracks. The
// premium and missing-playlist messages mirror the extractor's own phrasing
// so they stay recognizable in responses.
var (
	ErrNoResults        = errors.New("no tracks found")
	ErrPremiumOnly      = errors.New("This video is only available to Music Premium members")
	ErrPlaylistNotFound = errors.New("YouTube said: The playlist does not exist.")
)

// DiagnosticError carries unrecognized extractor stderr verbatim.
type DiagnosticError struct {
	Stderr string
}

func (e *DiagnosticError) Error() string { return e.Stderr }
