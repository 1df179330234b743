package transform

import "errors"

var (
	// ErrInsufficientEvidence is returned when too few correspondences
	// survived filtering or the rolling quality is below the acceptance
	// threshold. Recoverable; the frame simply produces no transform.
	ErrInsufficientEvidence = errors.New("insufficient evidence for transform")

	// ErrDegenerateGeometry is returned when the solver produced an empty
	// or ill-conditioned result. Recoverable, same as above.
	ErrDegenerateGeometry = errors.New("degenerate transform geometry")
)
