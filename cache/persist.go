package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/respcache/observe"
)

// Persister loads and saves cache state.
//
// Contract:
// - Concurrency: Save is never called concurrently by one Interceptor.
// - Load: a missing or empty record returns (nil, nil).
// - Errors: Load errors are recovered by starting empty. Save errors drop the write.
type Persister interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// restore loads persisted state into the store and counters.
func (i *Interceptor) restore(ctx context.Context) {
	if i.persister == nil {
		return
	}

	st, err := i.persister.Load(ctx)
	if err != nil {
		i.logger.Warn(ctx, "persisted cache state unusable; starting empty", observe.F("error", err))
		return
	}
	if st == nil {
		return
	}

	kept := i.store.Restore(st.Entries)
	i.stats.Restore(st.HitCount, st.MissCount)
	i.logger.Info(ctx, "cache state restored",
		observe.F("entries", kept),
		observe.F("dropped", len(st.Entries)-kept),
		observe.F("hits", st.HitCount),
		observe.F("misses", st.MissCount),
	)
}

// markDirty schedules a write of the current state. With no debounce the
// write happens before markDirty returns.
func (i *Interceptor) markDirty(ctx context.Context) {
	if i.persister == nil || i.closed.Load() {
		return
	}
	if i.debounce <= 0 {
		_ = i.save(context.WithoutCancel(ctx))
		return
	}
	select {
	case i.dirty <- struct{}{}:
	default:
	}
}

// save writes the current state. Failures are logged and returned.
func (i *Interceptor) save(ctx context.Context) error {
	i.saveMu.Lock()
	defer i.saveMu.Unlock()

	st := i.state()
	start := time.Now()
	err := i.persister.Save(ctx, &st)
	i.metrics.RecordPersist(ctx, time.Since(start), err)
	if err != nil {
		i.logger.Warn(ctx, "cache persist failed; write dropped",
			observe.F("error", err),
			observe.F("entries", len(st.Entries)),
		)
	}
	return err
}

// persistLoop coalesces dirty marks into at most one write per debounce
// interval.
func (i *Interceptor) persistLoop() {
	defer close(i.loopDone)

	timer := time.NewTimer(i.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-i.done:
			timer.Stop()
			return
		case <-i.dirty:
			if !pending {
				pending = true
				timer.Reset(i.debounce)
			}
		case <-timer.C:
			pending = false
			_ = i.save(context.Background())
		}
	}
}

func (i *Interceptor) state() State {
	return State{
		Entries:   i.store.Entries(),
		HitCount:  i.stats.Hits(),
		MissCount: i.stats.Misses(),
	}
}
