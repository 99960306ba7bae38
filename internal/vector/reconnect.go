package vector

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DialFunc creates a fresh index handle.
type DialFunc func(ctx context.Context) (Index, error)

// Reconnecting wraps an Index handle with a reconnect-and-retry-once policy:
// when a call fails, the handle is reinitialized via dial and the single failed
// call is retried exactly once. The retry's error (or the dial error's original
// cause) is returned to the caller, which decides whether to swallow it.
//
// The handle is an explicit connection value; callers never mutate a shared
// index variable in place.
type Reconnecting struct {
	dial   DialFunc
	logger *zap.Logger
	mu     sync.Mutex
	idx    Index
}

// NewReconnecting wraps idx. dial is used to obtain a replacement handle after
// a failure; logger may be nil.
func NewReconnecting(idx Index, dial DialFunc, logger *zap.Logger) *Reconnecting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconnecting{dial: dial, logger: logger, idx: idx}
}

func (r *Reconnecting) current() Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx
}

// reconnect replaces the stale handle with a freshly dialed one. If another
// caller already replaced it, the existing replacement is reused.
func (r *Reconnecting) reconnect(ctx context.Context, stale Index) (Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx != stale {
		return r.idx, nil
	}
	fresh, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	_ = stale.Close()
	r.idx = fresh
	return fresh, nil
}

// Query runs the query, reconnecting and retrying once on failure.
func (r *Reconnecting) Query(ctx context.Context, query []float32, topK int, includeMetadata bool) ([]Match, error) {
	idx := r.current()
	matches, err := idx.Query(ctx, query, topK, includeMetadata)
	if err == nil {
		return matches, nil
	}
	r.logger.Warn("index query failed, reconnecting", zap.Error(err))
	fresh, dialErr := r.reconnect(ctx, idx)
	if dialErr != nil {
		r.logger.Error("index reconnect failed", zap.Error(dialErr))
		return nil, err
	}
	return fresh.Query(ctx, query, topK, includeMetadata)
}

// Upsert writes the vector, reconnecting and retrying once on failure.
func (r *Reconnecting) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	idx := r.current()
	err := idx.Upsert(ctx, id, vec, meta)
	if err == nil {
		return nil
	}
	r.logger.Warn("index upsert failed, reconnecting", zap.String("id", id), zap.Error(err))
	fresh, dialErr := r.reconnect(ctx, idx)
	if dialErr != nil {
		r.logger.Error("index reconnect failed", zap.Error(dialErr))
		return err
	}
	return fresh.Upsert(ctx, id, vec, meta)
}

// Delete removes the ids, reconnecting and retrying once on failure.
func (r *Reconnecting) Delete(ctx context.Context, ids []string) error {
	idx := r.current()
	err := idx.Delete(ctx, ids)
	if err == nil {
		return nil
	}
	r.logger.Warn("index delete failed, reconnecting", zap.Strings("ids", ids), zap.Error(err))
	fresh, dialErr := r.reconnect(ctx, idx)
	if dialErr != nil {
		r.logger.Error("index reconnect failed", zap.Error(dialErr))
		return err
	}
	return fresh.Delete(ctx, ids)
}

// Size reports the underlying index size when supported, else 0.
func (r *Reconnecting) Size() int {
	if s, ok := r.current().(Sizer); ok {
		return s.Size()
	}
	return 0
}

// Close closes the current handle.
func (r *Reconnecting) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx.Close()
}
