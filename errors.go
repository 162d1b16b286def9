package condset

import (
	"errors"
	"fmt"

	"github.com/hupe1980/condset/internal/resource"
)

var (
	// ErrNoSites is returned when the variant map is empty.
	ErrNoSites = errors.New("no sites in variant map")

	// ErrNoEligibleSites is returned when no site passes the MAC/MDR filter.
	ErrNoEligibleSites = errors.New("no site passes the MAC/MDR filter")

	// ErrInvalidDepth is returned when depth is not positive.
	ErrInvalidDepth = errors.New("depth must be positive")

	// ErrInvalidModulo is returned when the group width is not positive.
	ErrInvalidModulo = errors.New("modulo selection must be positive")

	// ErrPanelMismatch is returned when the panel and variant map disagree.
	ErrPanelMismatch = errors.New("panel does not match variant map")

	// ErrDegenerateUniverse is returned when no haplotype outside the target
	// individual exists to sample fallback states from.
	ErrDegenerateUniverse = errors.New("no haplotype outside the target individual")

	// ErrInvalidRandomStates is returned when a job would draw no fallback
	// states.
	ErrInvalidRandomStates = errors.New("random states must be positive")

	// ErrInvalidMinStates is returned when the fallback threshold is not
	// positive.
	ErrInvalidMinStates = errors.New("min states must be positive")

	// ErrIndividualOutOfRange is returned for an unknown individual index.
	ErrIndividualOutOfRange = errors.New("individual out of range")

	// ErrSnapshotMismatch is returned when a snapshot does not fit the
	// conditioning set it is restored into.
	ErrSnapshotMismatch = errors.New("snapshot does not match conditioning set")

	// ErrInvariant matches every *InvariantError.
	ErrInvariant = errors.New("internal invariant violated")
)

// InvariantError reports an internal-consistency failure: a builder or
// lookup bug rather than bad input.
//
// errors.Is(err, ErrInvariant) reports true for any InvariantError.
type InvariantError struct {
	Op     string
	Detail string
	cause  error
}

func (e *InvariantError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: invariant violated: %s: %v", e.Op, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: invariant violated: %s", e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error { return e.cause }

// Is reports ErrInvariant as a match.
func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }

func invariantf(op string, cause error, format string, args ...any) error {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...), cause: cause}
}

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// limit set with WithMemoryLimit.
var ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

// ErrJobFreed is returned by Make after Free.
var ErrJobFreed = errors.New("job freed")
