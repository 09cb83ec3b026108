package rewrite

import (
	"errors"
	"fmt"
)

// DefaultMaxRewrites bounds the number of successful rewrites in one
// ApplyGreedily call.
const DefaultMaxRewrites = 10000

// quota counts successful rewrites and enforces the limit.
type quota struct {
	limit   int
	current int
}

func newQuota(limit int) *quota {
	return &quota{limit: limit}
}

// Check records one rewrite rooted at root.
func (q *quota) Check(root string) error {
	q.current++
	if q.current > q.limit {
		return &QuotaExceededError{Root: root, Rewrites: q.current, Limit: q.limit}
	}
	return nil
}

// Current returns the number of rewrites recorded so far.
func (q *quota) Current() int { return q.current }

// QuotaExceededError is returned when the patterns keep firing past the
// rewrite limit, which usually means two patterns undo each other.
type QuotaExceededError struct {
	Root     string // instruction that triggered the rewrite over the limit
	Rewrites int
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("rewrite of %s exceeded quota: %d rewrites > %d limit",
		e.Root, e.Rewrites, e.Limit)
}

// IsQuotaExceededError reports whether err is a QuotaExceededError.
func IsQuotaExceededError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
