// Package quota keeps the most recently known quota for the logged-in user.
// The value is refreshed on login and then periodically, overwritten by
// 429 responses, and shared with other kx processes through a Broadcaster.
package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RefreshInterval is how often the quota is re-fetched while logged in.
const RefreshInterval = 60 * time.Second

// Fetcher retrieves the current quota from the backend.
type Fetcher interface {
	QuotaStatus(ctx context.Context) (*api.QuotaInfo, error)
}

// Broadcaster shares quota updates between processes.
type Broadcaster interface {
	Publish(ctx context.Context, info api.QuotaInfo) error
	// Subscribe calls fn for every update until ctx is done. It returns
	// nil when ctx ends.
	Subscribe(ctx context.Context, fn func(api.QuotaInfo)) error
}

// Tracker owns the last known quota and a loading flag.
type Tracker struct {
	fetcher     Fetcher
	broadcaster Broadcaster
	logger      zerolog.Logger
	interval    time.Duration

	mu        sync.Mutex
	current   *api.QuotaInfo
	loading   bool
	authed    bool
	listeners []func(*api.QuotaInfo)

	authCh chan bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithBroadcaster enables cross-process sync.
func WithBroadcaster(b Broadcaster) Option {
	return func(t *Tracker) { t.broadcaster = b }
}

// WithInterval overrides RefreshInterval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a Tracker. It starts logged out.
func NewTracker(fetcher Fetcher, opts ...Option) *Tracker {
	t := &Tracker{
		fetcher:  fetcher,
		logger:   zerolog.Nop(),
		interval: RefreshInterval,
		authCh:   make(chan bool, 1),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Snapshot returns a copy of the last known quota and whether a fetch is
// in flight. The quota is nil when unknown.
func (t *Tracker) Snapshot() (*api.QuotaInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil, t.loading
	}
	info := *t.current
	return &info, t.loading
}

// Exhausted reports whether the last known quota is used up.
func (t *Tracker) Exhausted() bool {
	info, _ := t.Snapshot()
	return info != nil && info.Exhausted()
}

// OnUpdate registers fn to be called whenever the known quota changes.
// fn receives nil when the quota is cleared.
func (t *Tracker) OnUpdate(fn func(*api.QuotaInfo)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// SetAuthenticated records a login state transition. Run reacts to it by
// refreshing and starting the timer, or by stopping the timer and
// clearing the value.
func (t *Tracker) SetAuthenticated(authed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authed = authed

	// Keep only the latest transition. The channel is empty after the
	// drain and senders are serialized by mu, so the send cannot block.
	select {
	case <-t.authCh:
	default:
	}
	t.authCh <- authed
}

func (t *Tracker) authenticated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.authed
}

// Refresh fetches the quota now. When logged out it clears the value.
// On failure the previous value is kept and reporting is left to the caller.
func (t *Tracker) Refresh(ctx context.Context) error {
	if !t.authenticated() {
		t.store(nil, false)
		return nil
	}

	t.setLoading(true)
	info, err := t.fetcher.QuotaStatus(ctx)
	t.setLoading(false)
	if err != nil {
		t.logger.Debug().Err(err).Msg("failed to fetch quota")
		return err
	}

	// A logout during the fetch wins over the fetched value.
	if !t.store(info, true) {
		return nil
	}
	t.publish(ctx, *info)
	return nil
}

// Adopt takes a value pushed from elsewhere. The latest value wins.
func (t *Tracker) Adopt(info api.QuotaInfo) {
	t.store(&info, false)
}

// adoptRemote is Adopt for broadcast updates, which are dropped while
// logged out. This also discards echoes of our own publications that
// arrive after a logout.
func (t *Tracker) adoptRemote(info api.QuotaInfo) {
	t.store(&info, true)
}

// Observe inspects an error returned by the api client. A quota error
// carries fresh quota data, which is adopted and broadcast.
func (t *Tracker) Observe(ctx context.Context, err error) {
	var quotaErr *api.QuotaExhaustedError
	if !errors.As(err, &quotaErr) {
		return
	}
	t.Adopt(quotaErr.Info)
	t.publish(ctx, quotaErr.Info)
}

// Run drives the periodic refresh and the broadcast subscription until
// ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if t.broadcaster != nil {
		g.Go(func() error {
			return t.broadcaster.Subscribe(ctx, t.adoptRemote)
		})
	}
	g.Go(func() error {
		t.refreshLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (t *Tracker) refreshLoop(ctx context.Context) {
	var ticker *time.Ticker
	var tick <-chan time.Time
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case authed := <-t.authCh:
			if !authed {
				stop()
				t.store(nil, false)
				continue
			}
			t.refreshInBackground(ctx)
			if ticker == nil {
				ticker = time.NewTicker(t.interval)
				tick = ticker.C
			}
		case <-tick:
			t.refreshInBackground(ctx)
		}
	}
}

// refreshInBackground reports failures itself since no caller sees them.
func (t *Tracker) refreshInBackground(ctx context.Context) {
	if err := t.Refresh(ctx); err != nil && ctx.Err() == nil {
		t.logger.Warn().Err(err).Msg("failed to fetch quota")
	}
}

func (t *Tracker) setLoading(v bool) {
	t.mu.Lock()
	t.loading = v
	t.mu.Unlock()
}

// store sets the current value and notifies listeners on change. With
// requireAuth it does nothing while logged out. It reports whether the
// value was accepted.
func (t *Tracker) store(info *api.QuotaInfo, requireAuth bool) bool {
	t.mu.Lock()
	if requireAuth && !t.authed {
		t.mu.Unlock()
		return false
	}
	if sameQuota(t.current, info) {
		t.mu.Unlock()
		return true
	}
	if info != nil {
		cp := *info
		info = &cp
	}
	t.current = info
	listeners := append([]func(*api.QuotaInfo){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		if info == nil {
			fn(nil)
			continue
		}
		cp := *info
		fn(&cp)
	}
	return true
}

func (t *Tracker) publish(ctx context.Context, info api.QuotaInfo) {
	if t.broadcaster == nil {
		return
	}
	if err := t.broadcaster.Publish(ctx, info); err != nil {
		t.logger.Warn().Err(err).Msg("failed to broadcast quota")
	}
}

func sameQuota(a, b *api.QuotaInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Used == b.Used &&
		a.Limit == b.Limit &&
		a.Remaining == b.Remaining &&
		a.IsExhausted == b.IsExhausted &&
		a.Message == b.Message &&
		a.ResetAt.Equal(b.ResetAt.Time)
}
