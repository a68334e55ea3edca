package cache

// Composed is returned by computations that consumed other cached results.
// CacheTimestamp is the oldest constituent timestamp, zero when unknown.
type Composed struct {
	Result         any
	CacheTimestamp int64
}

// Freshness tracks the oldest cache timestamp among consumed envelopes.
// The zero value is ready to use.
type Freshness struct {
	oldest  int64
	absent  bool
	changed bool
}

// Observe records one consumed envelope.
func (f *Freshness) Observe(env *Envelope) {
	if env == nil || env.CacheTimestamp == 0 {
		f.absent = true
		return
	}
	if !f.changed || env.CacheTimestamp < f.oldest {
		f.oldest = env.CacheTimestamp
	}
	f.changed = true
}

// Timestamp is the minimum observed timestamp, or zero if any observed
// envelope had none or nothing was observed.
func (f *Freshness) Timestamp() int64 {
	if f.absent || !f.changed {
		return 0
	}
	return f.oldest
}

// Compose attaches the tracked timestamp to result.
func (f *Freshness) Compose(result any) Composed {
	return Composed{Result: result, CacheTimestamp: f.Timestamp()}
}
