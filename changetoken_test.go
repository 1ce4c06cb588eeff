package routekit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestCallbackChangeToken(t *testing.T) {
	t.Run("callbacks run once", func(t *testing.T) {
		token := NewCallbackChangeToken()
		var calls atomic.Int32
		token.RegisterChangeCallback(func() { calls.Add(1) })

		if token.HasChanged() {
			t.Fatal("new token reports a change")
		}
		token.SignalChange()
		token.SignalChange()

		if !token.HasChanged() {
			t.Error("expected HasChanged after SignalChange")
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("callback ran %d times, want 1", got)
		}
	})

	t.Run("late registration runs immediately", func(t *testing.T) {
		token := NewCallbackChangeToken()
		token.SignalChange()

		ran := false
		token.RegisterChangeCallback(func() { ran = true })
		if !ran {
			t.Error("callback registered on a changed token did not run")
		}
	})

	t.Run("unregistered callbacks are skipped", func(t *testing.T) {
		token := NewCallbackChangeToken()
		ran := false
		unregister := token.RegisterChangeCallback(func() { ran = true })
		unregister()
		token.SignalChange()
		if ran {
			t.Error("unregistered callback ran")
		}
	})
}

func TestCompositeChangeToken(t *testing.T) {
	a, b := NewCallbackChangeToken(), NewCallbackChangeToken()
	composite := NewCompositeChangeToken(a, b)

	var calls atomic.Int32
	composite.RegisterChangeCallback(func() { calls.Add(1) })

	if !composite.ActiveChangeCallbacks() {
		t.Error("expected active callbacks when every part has them")
	}
	b.SignalChange()
	a.SignalChange()

	if !composite.HasChanged() {
		t.Error("expected composite to report a change")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("composite callback ran %d times, want 1", got)
	}

	if NewCompositeChangeToken(a, NeverChangeToken{}).ActiveChangeCallbacks() {
		t.Error("a never-changing part has no active callbacks")
	}
}

func TestPollingChangeToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls atomic.Int32
	token := NewPollingChangeToken(ctx, PollingConfig{
		Interval:  5 * time.Millisecond,
		CheckFunc: func() bool { return polls.Add(1) >= 3 },
	})

	fired := make(chan struct{})
	token.RegisterChangeCallback(func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("polling token never fired")
	}
	if !token.HasChanged() {
		t.Error("expected HasChanged after firing")
	}
}

func TestPollingChangeTokenStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var polls atomic.Int32
	token := NewPollingChangeToken(ctx, PollingConfig{
		Interval:  time.Millisecond,
		CheckFunc: func() bool { polls.Add(1); return false },
	})
	cancel()
	time.Sleep(20 * time.Millisecond)
	before := polls.Load()
	time.Sleep(20 * time.Millisecond)

	if polls.Load() != before {
		t.Error("polling continued after cancellation")
	}
	if token.HasChanged() {
		t.Error("cancelled token reports a change")
	}
}

func TestOnChange(t *testing.T) {
	t.Run("re-arms after every change", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		tokens := make(chan *CallbackChangeToken, 4)
		changes := make(chan struct{}, 4)
		stopped := OnChange(ctx,
			func() (ChangeToken, error) {
				tok := NewCallbackChangeToken()
				tokens <- tok
				return tok, nil
			},
			func() { changes <- struct{}{} },
		)

		for i := 0; i < 3; i++ {
			select {
			case tok := <-tokens:
				tok.SignalChange()
			case <-time.After(2 * time.Second):
				t.Fatalf("token %d was never produced", i)
			}
			select {
			case <-changes:
			case <-time.After(2 * time.Second):
				t.Fatalf("change %d was never delivered", i)
			}
		}

		cancel()
		select {
		case err, ok := <-stopped:
			if ok {
				t.Errorf("expected a closed channel on cancellation, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("OnChange did not stop")
		}
	})

	t.Run("producer failure stops watching", func(t *testing.T) {
		boom := errors.New("watch failed")
		stopped := OnChange(context.Background(),
			func() (ChangeToken, error) { return nil, boom },
			func() { t.Error("action ran without a change") },
		)

		select {
		case err := <-stopped:
			if !errors.Is(err, boom) {
				t.Errorf("expected producer error, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("OnChange did not report the producer error")
		}
	})
}
