package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/japaniel/yomigana/pkg/logging"
)

// State is the lifecycle of a Provider.
type State int

const (
	// Uninitialized means no probe has completed yet.
	Uninitialized State = iota
	// Ready means the external analyzer is available.
	Ready
	// Degraded means the probe failed, was never attempted, or the
	// analyzer failed mid-call. It is permanent for the Provider.
	Degraded
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// LoadFunc probes for an analyzer. Returning an error or None leaves the
// Provider Degraded.
type LoadFunc func(ctx context.Context) (Analyzer, error)

// Provider owns the analyzer for a process. The probe runs at most once;
// callers that arrive while it is in flight wait for the same probe.
type Provider struct {
	load    LoadFunc
	timeout time.Duration
	once    sync.Once
	done   chan struct{}
	logger *slog.Logger

	mu    sync.RWMutex
	state State
	a     Analyzer
}

// NewProvider creates a Provider. A nil load means no analyzer will ever be
// probed and the Provider starts out Degraded. timeout bounds the probe;
// zero waits as long as load takes. A nil logger discards logs.
func NewProvider(load LoadFunc, timeout time.Duration, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = logging.Discard()
	}
	p := &Provider{
		load:    load,
		timeout: timeout,
		done:    make(chan struct{}),
		logger:  logger,
	}
	if load == nil {
		p.state = Degraded
		p.once.Do(func() { close(p.done) })
	}
	return p
}

// Start launches the probe if it has not been launched yet. It does not
// block.
func (p *Provider) Start() {
	p.once.Do(func() {
		go p.probe()
	})
}

func (p *Provider) probe() {
	defer close(p.done)
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	a, err := p.callLoad(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Degraded {
		return
	}
	if _, none := a.(None); err != nil || a == nil || none {
		p.state = Degraded
		p.logger.Warn("analyzer unavailable, using fallback segmentation", "error", err)
		return
	}
	p.a = a
	p.state = Ready
	p.logger.Debug("analyzer ready")
}

// callLoad runs load but stops waiting once ctx ends. Dictionary loading
// does not observe ctx, so the abandoned load finishes in the background.
func (p *Provider) callLoad(ctx context.Context) (Analyzer, error) {
	type result struct {
		a   Analyzer
		err error
	}
	ch := make(chan result, 1)
	go func() {
		a, err := p.load(ctx)
		ch <- result{a, err}
	}()
	select {
	case r := <-ch:
		return r.a, r.err
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	}
}

// Acquire waits for the probe and returns the analyzer when Ready. It
// returns false when the Provider is Degraded or ctx ends first.
func (p *Provider) Acquire(ctx context.Context) (Analyzer, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	p.Start()
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != Ready {
		return nil, false
	}
	return p.a, true
}

// Wait blocks until the probe has finished or ctx ends, and returns the
// resulting state.
func (p *Provider) Wait(ctx context.Context) State {
	p.Start()
	select {
	case <-p.done:
	case <-ctx.Done():
	}
	return p.State()
}

// Demote moves the Provider to Degraded after a mid-call failure.
func (p *Provider) Demote(cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Degraded {
		return
	}
	p.state = Degraded
	p.a = nil
	p.logger.Warn("analyzer failed, degrading for the rest of the session", "error", cause)
}

// State returns the current state without waiting.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}
