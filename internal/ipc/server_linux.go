//go:build linux

package ipc

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

// VerifyPeerIsCurrentUser reports whether the process on the other end
// of a Unix socket connection runs under the daemon's own UID. The
// socket file mode already restricts access; this guards against
// permissive umasks and shared runtime directories.
func VerifyPeerIsCurrentUser(conn net.Conn) (bool, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return false, fmt.Errorf("not a unix connection")
	}

	raw, err := unixConn.SyscallConn()
	if err != nil {
		return false, fmt.Errorf("raw conn: %w", err)
	}

	var cred *syscall.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = syscall.GetsockoptUcred(int(fd), syscall.SOL_SOCKET, syscall.SO_PEERCRED)
	}); err != nil {
		return false, fmt.Errorf("control: %w", err)
	}
	if credErr != nil {
		return false, fmt.Errorf("peer credentials: %w", credErr)
	}

	return int(cred.Uid) == os.Getuid(), nil
}
