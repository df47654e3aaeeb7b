package control

import (
	"fmt"
	"time"
)

// Policy defines per-request limits applied to model invocations.
type Policy struct {
	MaxWallTime time.Duration
}

// DefaultPolicy returns the default request policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxWallTime: 120 * time.Second,
	}
}

// LimitType identifies which limit is reached.
type LimitType string

const (
	LimitWallTime LimitType = "max_wall_time_seconds"
)

// LimitError indicates a run limit was reached.
type LimitError struct {
	Type      LimitType
	Value     int64
	Threshold int64
	Err       error
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit reached type=%s value=%d threshold=%d", e.Type, e.Value, e.Threshold)
}

func (e *LimitError) Unwrap() error {
	return e.Err
}

// CheckWallTime validates elapsed time against policy. A non-positive
// MaxWallTime disables the check.
func CheckWallTime(p Policy, startedAt time.Time, now time.Time) error {
	limit := p.MaxWallTime
	if limit <= 0 {
		return nil
	}
	elapsed := now.Sub(startedAt)
	if elapsed >= limit {
		return &LimitError{
			Type:      LimitWallTime,
			Value:     int64(elapsed.Seconds()),
			Threshold: int64(limit.Seconds()),
		}
	}
	return nil
}
