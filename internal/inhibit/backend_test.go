package inhibit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFormatting(t *testing.T) {
	assert.Equal(t, "cookie:42", cookieToken(42).String())
	assert.Equal(t, "fd:7", fdToken(7).String())
}

func TestNewBackendRejectsUnknownName(t *testing.T) {
	_, err := NewBackend("dpms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dpms")
}

func TestLazyBackendUnknownNameFailsPerCall(t *testing.T) {
	l := NewLazyBackend("dpms")
	assert.Equal(t, "dpms", l.Name())
	assert.False(t, l.Connected())

	_, err := l.Inhibit("gamepadd", "Gamepad active")
	require.Error(t, err)
	assert.False(t, l.Connected(), "failed connect must not be cached")

	// Close on a never-connected backend is a no-op.
	require.NoError(t, l.Close())
}

func TestScreenSaverBackendRejectsForeignToken(t *testing.T) {
	b := &ScreenSaverBackend{}
	err := b.UnInhibit(fdToken(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusCall)
}

func TestLogindBackendRejectsForeignToken(t *testing.T) {
	b := &LogindBackend{}
	err := b.UnInhibit(cookieToken(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusCall)
}
