package routekit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// ChangeToken Implementations
// ============================================================================

// CallbackChangeToken is a ChangeToken that supports active callbacks.
// Drivers with native file system events signal it.
type CallbackChangeToken struct {
	mu        sync.Mutex
	changed   atomic.Bool
	callbacks []func()
}

// NewCallbackChangeToken creates a new ChangeToken that supports active callbacks.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

// RegisterChangeCallback registers callback. A token that has already
// changed invokes it immediately.
func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	t.mu.Lock()
	if t.changed.Load() {
		t.mu.Unlock()
		callback()
		return func() {}
	}
	t.callbacks = append(t.callbacks, callback)
	index := len(t.callbacks) - 1
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if index < len(t.callbacks) {
			// nil out rather than remove so later indexes stay valid
			t.callbacks[index] = nil
		}
	}
}

// SignalChange marks the token as changed and invokes all callbacks once.
func (t *CallbackChangeToken) SignalChange() {
	t.mu.Lock()
	if t.changed.Swap(true) {
		t.mu.Unlock()
		return
	}
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

// ============================================================================
// Polling ChangeToken
// ============================================================================

// PollingConfig configures a polling change token.
type PollingConfig struct {
	// Interval between polls (default: 5 seconds)
	Interval time.Duration
	// CheckFunc returns true if a change is detected
	CheckFunc func() bool
}

// NewPollingChangeToken creates a ChangeToken for filesystems without
// native events. CheckFunc is called every Interval until it reports a
// change or ctx is cancelled.
func NewPollingChangeToken(ctx context.Context, config PollingConfig) ChangeToken {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}

	t := NewCallbackChangeToken()
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if config.CheckFunc != nil && config.CheckFunc() {
					t.SignalChange()
					return
				}
			}
		}
	}()
	return t
}

// ============================================================================
// Composite ChangeToken
// ============================================================================

// CompositeChangeToken combines multiple ChangeTokens into one.
// HasChanged returns true if ANY of the underlying tokens has changed.
type CompositeChangeToken struct {
	tokens []ChangeToken
}

// NewCompositeChangeToken creates a token that combines multiple tokens.
func NewCompositeChangeToken(tokens ...ChangeToken) *CompositeChangeToken {
	return &CompositeChangeToken{tokens: tokens}
}

func (c *CompositeChangeToken) HasChanged() bool {
	for _, t := range c.tokens {
		if t.HasChanged() {
			return true
		}
	}
	return false
}

func (c *CompositeChangeToken) ActiveChangeCallbacks() bool {
	for _, t := range c.tokens {
		if !t.ActiveChangeCallbacks() {
			return false
		}
	}
	return len(c.tokens) > 0
}

// RegisterChangeCallback registers callback on every token. callback runs
// at most once even when several tokens change.
func (c *CompositeChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	var once sync.Once
	fire := func() { once.Do(callback) }

	unregisters := make([]func(), 0, len(c.tokens))
	for _, t := range c.tokens {
		unregisters = append(unregisters, t.RegisterChangeCallback(fire))
	}

	return func() {
		for _, u := range unregisters {
			u()
		}
	}
}

// NeverChangeToken is a ChangeToken that never changes.
type NeverChangeToken struct{}

func (NeverChangeToken) HasChanged() bool                     { return false }
func (NeverChangeToken) ActiveChangeCallbacks() bool          { return false }
func (NeverChangeToken) RegisterChangeCallback(func()) func() { return func() {} }

// ============================================================================
// Helper: OnChange
// ============================================================================

// OnChange re-arms a token every time it fires and calls changeAction after
// each change. It stops when ctx is done or tokenProducer fails; the
// returned channel is closed at that point. changeAction runs on the
// watching goroutine, so slow actions delay re-arming.
//
// Example:
//
//	done := routekit.OnChange(ctx,
//	    func() (routekit.ChangeToken, error) {
//	        return fs.(routekit.CanWatch).Watch(ctx, "/mnt/inputs/*.zip")
//	    },
//	    func() { pending <- struct{}{} },
//	)
func OnChange(ctx context.Context, tokenProducer func() (ChangeToken, error), changeAction func()) <-chan error {
	stopped := make(chan error, 1)

	go func() {
		defer close(stopped)
		for {
			token, err := tokenProducer()
			if err != nil {
				stopped <- err
				return
			}

			fired := make(chan struct{})
			var once sync.Once
			unregister := token.RegisterChangeCallback(func() {
				once.Do(func() { close(fired) })
			})

			select {
			case <-ctx.Done():
				unregister()
				return
			case <-fired:
				unregister()
				changeAction()
			}
		}
	}()

	return stopped
}
