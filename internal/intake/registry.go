package intake

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"guessrank/internal/fileutil"
	"guessrank/internal/logging"
	"guessrank/internal/services"
)

// Registry holds submissions awaiting guild and rank selection.
type Registry struct {
	mu       sync.Mutex
	items    map[string]*Submission
	limiters map[string]*rate.Limiter
	timeout  time.Duration
	limit    rate.Limit
	burst    int
	now      func() time.Time
	logger   *slog.Logger
}

// NewRegistry creates a registry. perHour <= 0 disables rate limiting.
func NewRegistry(timeout time.Duration, perHour, burst int, logger *slog.Logger) *Registry {
	limit := rate.Inf
	if perHour > 0 {
		limit = rate.Limit(float64(perHour) / time.Hour.Seconds())
	}
	return &Registry{
		items:    make(map[string]*Submission),
		limiters: make(map[string]*rate.Limiter),
		timeout:  timeout,
		limit:    limit,
		burst:    max(1, burst),
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "intake"),
	}
}

// SetClock overrides the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Allow consumes one submission token for userID.
func (r *Registry) Allow(userID string) bool {
	if r.limit == rate.Inf {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters[userID] = limiter
	}
	return limiter.AllowN(r.now(), 1)
}

// Add registers a submission and returns it as stored.
func (r *Registry) Add(sub Submission) Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = r.now()
	}
	stored := sub
	r.items[sub.ID] = &stored
	return sub
}

// Get returns a copy of the submission.
func (r *Registry) Get(id string) (Submission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.items[id]
	if !ok {
		return Submission{}, false
	}
	return *sub, true
}

// Update mutates a registered submission. It reports NotFound when the
// submission expired or was already taken.
func (r *Registry) Update(id string, fn func(*Submission) error) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.items[id]
	if !ok {
		return Submission{}, expired(id)
	}
	updated := *sub
	if err := fn(&updated); err != nil {
		return Submission{}, err
	}
	*sub = updated
	return updated, nil
}

// Take removes a submission so a single caller can process it.
func (r *Registry) Take(id string) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.items[id]
	if !ok {
		return Submission{}, expired(id)
	}
	delete(r.items, id)
	return *sub, nil
}

// Discard removes a submission and its staged file.
func (r *Registry) Discard(id string) {
	r.mu.Lock()
	sub, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if ok {
		fileutil.RemoveQuietly(r.logger, sub.StagedPath)
	}
}

// Len returns the number of waiting submissions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Expire removes submissions older than the selection timeout and deletes
// their staged files. The expired submissions are returned oldest first.
// Rate limiters that have refilled are dropped too.
func (r *Registry) Expire() []Submission {
	r.mu.Lock()
	now := r.now()
	var stale []Submission
	for id, sub := range r.items {
		if now.Sub(sub.CreatedAt) > r.timeout {
			stale = append(stale, *sub)
			delete(r.items, id)
		}
	}
	for userID, limiter := range r.limiters {
		if limiter.TokensAt(now) >= float64(r.burst) {
			delete(r.limiters, userID)
		}
	}
	r.mu.Unlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	for _, sub := range stale {
		fileutil.RemoveQuietly(r.logger, sub.StagedPath)
		r.logger.Info("submission selection timed out",
			logging.String(logging.FieldSubmissionID, sub.ID),
			logging.String(logging.FieldUserID, sub.SubmitterID),
			logging.String(logging.FieldEventType, "submission_expired"),
		)
	}
	return stale
}

// Run expires submissions every interval until ctx is cancelled. onExpire is
// called for each expired submission.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onExpire func(Submission)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sub := range r.Expire() {
				if onExpire != nil {
					onExpire(sub)
				}
			}
		}
	}
}

// Close removes every waiting submission's staged file.
func (r *Registry) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Submission)
	r.mu.Unlock()
	for _, sub := range items {
		fileutil.RemoveQuietly(r.logger, sub.StagedPath)
	}
}

func expired(id string) error {
	return services.Describe("This submission has expired. Please send the clip again.",
		services.Wrap(services.ErrNotFound, "intake", "lookup", "submission "+id, nil))
}
