package intake

// LimiterCount reports how many submitters have a rate limiter.
func (r *Registry) LimiterCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
