package cart

import "time"

// transientError is a user-facing message that disappears ttl after it was set.
type transientError struct {
	msg   string
	setAt time.Time
	ttl   time.Duration
}

func (e *transientError) set(msg string, now time.Time) {
	e.msg = msg
	e.setAt = now
}

func (e transientError) value(now time.Time) string {
	if e.msg == "" || now.Sub(e.setAt) >= e.ttl {
		return ""
	}
	return e.msg
}
