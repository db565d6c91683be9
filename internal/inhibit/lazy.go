package inhibit

import "sync"

// LazyBackend defers the bus connection until the first inhibit call
// and re-attempts it after failures. The daemon can therefore start
// before the bus is up (or survive a bus restart) and simply retry on
// the next activity event.
type LazyBackend struct {
	name string

	mu      sync.Mutex
	backend Backend
}

// NewLazyBackend wraps the named backend without connecting.
func NewLazyBackend(name string) *LazyBackend {
	return &LazyBackend{name: name}
}

// Name implements Backend.
func (l *LazyBackend) Name() string { return l.name }

// Connected reports whether a bus connection is currently held.
func (l *LazyBackend) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend != nil
}

func (l *LazyBackend) get() (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.backend != nil {
		return l.backend, nil
	}
	b, err := NewBackend(l.name)
	if err != nil {
		return nil, err
	}
	l.backend = b
	return b, nil
}

// drop discards a connection after a failed call so the next call
// reconnects.
func (l *LazyBackend) drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend != nil {
		l.backend.Close()
		l.backend = nil
	}
}

// Inhibit implements Backend.
func (l *LazyBackend) Inhibit(appName, reason string) (Token, error) {
	b, err := l.get()
	if err != nil {
		return nil, err
	}
	token, err := b.Inhibit(appName, reason)
	if err != nil {
		l.drop()
		return nil, err
	}
	return token, nil
}

// UnInhibit implements Backend.
func (l *LazyBackend) UnInhibit(t Token) error {
	b, err := l.get()
	if err != nil {
		return err
	}
	if err := b.UnInhibit(t); err != nil {
		l.drop()
		return err
	}
	return nil
}

// Close implements Backend.
func (l *LazyBackend) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend != nil {
		err := l.backend.Close()
		l.backend = nil
		return err
	}
	return nil
}
