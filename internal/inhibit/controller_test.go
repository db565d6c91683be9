package inhibit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamepadd/internal/logging"
)

// fakeBackend records inhibit/uninhibit calls and can be made to fail.
// After Close, all calls fail, like a dropped bus connection.
type fakeBackend struct {
	mu         sync.Mutex
	inhibits   int
	releases   []Token
	inhibitErr error
	releaseErr error
	nextCookie uint32
	closed     bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Inhibit(appName, reason string) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrBusCall
	}
	if f.inhibitErr != nil {
		return nil, f.inhibitErr
	}
	f.inhibits++
	f.nextCookie++
	return cookieToken(f.nextCookie), nil
}

func (f *fakeBackend) UnInhibit(t Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrBusCall
	}
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.releases = append(f.releases, t)
	return nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.New(&logging.Config{Level: logging.LevelError, Output: "stderr"})
	if err != nil {
		t.Fatalf("create test logger: %v", err)
	}
	return l
}

func newTestController(t *testing.T, fb *fakeBackend, timeout time.Duration) *Controller {
	t.Helper()
	return NewController(fb, "gamepadd", "Gamepad active", timeout, testLogger(t))
}

func TestActivityInhibitsExactlyOnce(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)
	base := time.Now()

	// Activity events spaced under the timeout: one Inhibit, zero
	// UnInhibit calls.
	require.NoError(t, c.Activity(base))
	require.NoError(t, c.Activity(base.Add(1*time.Second)))
	require.NoError(t, c.Activity(base.Add(2*time.Second)))

	assert.Equal(t, 1, fb.inhibits)
	assert.Empty(t, fb.releases)
	assert.Equal(t, StateIdleInhibited, c.Snapshot().State)
}

func TestTimeoutReleasesWithHeldToken(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)
	base := time.Now()

	require.NoError(t, c.Activity(base))
	held := c.Snapshot().Token

	require.NoError(t, c.HandleTimeout(base.Add(5*time.Second)))

	require.Len(t, fb.releases, 1)
	assert.Equal(t, held, fb.releases[0].String())
	assert.Equal(t, StateIdleAllowed, c.Snapshot().State)
	assert.Empty(t, c.Snapshot().Token)
}

func TestEarlyTimerFireRearms(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)
	base := time.Now()

	require.NoError(t, c.Activity(base))
	require.NoError(t, c.Activity(base.Add(3*time.Second)))

	// Timer armed by the first event fires before the refreshed gap
	// has elapsed: stay inhibited.
	require.NoError(t, c.HandleTimeout(base.Add(5*time.Second)))

	assert.Empty(t, fb.releases)
	assert.Equal(t, StateIdleInhibited, c.Snapshot().State)
}

func TestInhibitScenarioThreeEventsThenSilence(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)
	base := time.Now()

	// Three events 1s apart, then 6s of silence.
	require.NoError(t, c.Activity(base.Add(1*time.Second)))
	require.NoError(t, c.Activity(base.Add(2*time.Second)))
	require.NoError(t, c.Activity(base.Add(3*time.Second)))
	require.NoError(t, c.HandleTimeout(base.Add(8*time.Second)))

	assert.Equal(t, 1, fb.inhibits, "exactly one Inhibit at the first event")
	assert.Len(t, fb.releases, 1, "one UnInhibit at last activity + timeout")
	assert.Equal(t, StateIdleAllowed, c.Snapshot().State)
}

func TestShutdownReleasesHeldInhibition(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)

	require.NoError(t, c.Activity(time.Now()))
	require.NoError(t, c.Shutdown())

	assert.Len(t, fb.releases, 1)
	assert.Equal(t, StateIdleAllowed, c.Snapshot().State)
}

func TestShutdownBeforeBackendCloseReleases(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)

	require.NoError(t, c.Activity(time.Now()))

	// The daemon unwinds in this order: controller shutdown first,
	// backend close second. The release must land while the backend
	// is still usable.
	require.NoError(t, c.Shutdown())
	require.NoError(t, fb.Close())

	assert.Len(t, fb.releases, 1)
}

func TestShutdownWithoutInhibitionIsNoop(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)

	require.NoError(t, c.Shutdown())
	assert.Zero(t, fb.inhibits)
	assert.Empty(t, fb.releases)
}

func TestInhibitFailureRetriesOnNextActivity(t *testing.T) {
	fb := &fakeBackend{inhibitErr: ErrBusCall}
	c := newTestController(t, fb, 5*time.Second)
	base := time.Now()

	err := c.Activity(base)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusCall))
	assert.Equal(t, StateIdleAllowed, c.Snapshot().State)

	// Bus comes back: the next activity event succeeds.
	fb.mu.Lock()
	fb.inhibitErr = nil
	fb.mu.Unlock()

	require.NoError(t, c.Activity(base.Add(time.Second)))
	assert.Equal(t, 1, fb.inhibits)
	assert.Equal(t, StateIdleInhibited, c.Snapshot().State)
}

func TestFailedReleaseClearsStateAndRetriesAtShutdown(t *testing.T) {
	fb := &fakeBackend{releaseErr: ErrBusCall}
	c := newTestController(t, fb, 5*time.Second)
	base := time.Now()

	require.NoError(t, c.Activity(base))
	held := c.Snapshot().Token

	// The uninhibit fails, but the token must not leak: local state
	// is cleared regardless.
	err := c.HandleTimeout(base.Add(5 * time.Second))
	require.Error(t, err)
	snap := c.Snapshot()
	assert.Equal(t, StateIdleAllowed, snap.State)
	assert.Empty(t, snap.Token)

	// Further activity issues a fresh inhibit, not a reuse.
	require.NoError(t, c.Activity(base.Add(6*time.Second)))
	assert.Equal(t, 2, fb.inhibits)

	// Shutdown retries the stale token exactly once.
	fb.mu.Lock()
	fb.releaseErr = nil
	fb.mu.Unlock()
	require.NoError(t, c.Shutdown())

	require.Len(t, fb.releases, 2)
	released := []string{fb.releases[0].String(), fb.releases[1].String()}
	assert.Contains(t, released, held)
}

func TestIdempotentWhileInhibited(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, time.Minute)
	base := time.Now()

	for i := 0; i < 100; i++ {
		require.NoError(t, c.Activity(base.Add(time.Duration(i)*time.Millisecond)))
	}

	assert.Equal(t, 1, fb.inhibits, "at most one outstanding inhibition token")
	assert.Empty(t, fb.releases)
}

func TestSetTimeoutWhileInhibited(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, time.Minute)
	base := time.Now()

	require.NoError(t, c.Activity(base))
	c.SetTimeout(time.Nanosecond)

	// The re-armed timer fires almost immediately.
	select {
	case <-c.TimerC():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire after SetTimeout")
	}

	require.NoError(t, c.HandleTimeout(time.Now()))
	assert.Equal(t, StateIdleAllowed, c.Snapshot().State)
}

func TestSnapshotCounters(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestController(t, fb, 5*time.Second)
	base := time.Now()

	require.NoError(t, c.Activity(base))
	require.NoError(t, c.HandleTimeout(base.Add(5*time.Second)))
	require.NoError(t, c.Activity(base.Add(10*time.Second)))

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.InhibitCalls)
	assert.Equal(t, uint64(1), snap.ReleaseCalls)
	assert.Equal(t, "fake", snap.Backend)
	assert.NotEmpty(t, snap.Token)
}
