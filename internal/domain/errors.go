package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientData signals that a computation lacked enough observations.
// It is always recoverable: callers absorb it by producing an absent result
// for the cell or date in question, never by aborting the run.
var ErrInsufficientData = errors.New("insufficient data")

// ConfigError reports an invalid configuration option. Configuration errors
// are fatal and are raised before a run starts.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Option, e.Reason)
}

// ConsistencyError reports a broken internal invariant, such as a duplicate
// panel key or a constraint fixed point that failed to converge. It indicates
// a logic defect rather than a data condition and is surfaced immediately.
// Date/Asset/Factor carry enough context to reproduce the failure; zero
// values mean "not applicable".
type ConsistencyError struct {
	Op     string
	Date   Date
	Asset  AssetID
	Factor FactorID
	Reason string
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("consistency violation in %s: %s", e.Op, e.Reason)
	if e.Date != 0 {
		msg += fmt.Sprintf(" (date=%d", e.Date)
		if e.Asset != 0 {
			msg += fmt.Sprintf(", asset=%d", e.Asset)
		}
		if e.Factor != "" {
			msg += fmt.Sprintf(", factor=%s", e.Factor)
		}
		msg += ")"
	}
	return msg
}

// IsConsistencyError reports whether err wraps a ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
