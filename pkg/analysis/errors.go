package analysis

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the analysis pipeline. Callers match them with
// errors.Is and map them to whatever transport they sit behind.
var (
	// ErrFileNotFound means the audio path did not resolve to a file.
	ErrFileNotFound = errors.New("audio file not found")

	// ErrUnsupportedFormat means the container or codec cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrDecode means the file was recognized but its data is corrupt.
	ErrDecode = errors.New("audio decode failed")
)

// InvalidCueIntervalError reports two manual cue intervals that overlap after
// clamping. Overlaps are rejected rather than merged so the caller can fix
// the offending pair.
type InvalidCueIntervalError struct {
	I, J int      // indices into the caller-supplied interval list
	A, B Interval // the intervals as clamped
}

func (e *InvalidCueIntervalError) Error() string {
	return fmt.Sprintf("cue intervals %d [%.3f, %.3f] and %d [%.3f, %.3f] overlap",
		e.I, e.A.Start, e.A.End, e.J, e.B.Start, e.B.End)
}
