package stage

import "context"

// Checker is implemented by every component whose readiness the daemon
// reports: the transform toolchain, the store, the chat session.
type Checker interface {
	HealthCheck(context.Context) Health
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(context.Context) Health

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) Health {
	return f(ctx)
}

// CheckAll runs every checker in order.
func CheckAll(ctx context.Context, checkers ...Checker) []Health {
	out := make([]Health, 0, len(checkers))
	for _, c := range checkers {
		if c == nil {
			continue
		}
		out = append(out, c.HealthCheck(ctx))
	}
	return out
}
