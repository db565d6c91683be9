//go:build linux

package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"gamepadd/internal/logging"
)

func serverLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.New(&logging.Config{Level: logging.LevelError, Output: "stderr"})
	if err != nil {
		t.Fatalf("create test logger: %v", err)
	}
	return l
}

// echoHandler answers pings and echoes everything else as an error.
func echoHandler(ctx context.Context, msg *Message) (*Message, error) {
	switch msg.Type {
	case MsgPing:
		return &Message{Type: MsgPong, ID: msg.ID}, nil
	default:
		return ErrorMessage(msg.ID, "unsupported"), nil
	}
}

func startTestServer(t *testing.T) (string, *Server) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "gamepadd.sock")
	srv := NewServer(socketPath, HandlerFunc(echoHandler), serverLogger(t))
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return socketPath, srv
}

func TestServerPing(t *testing.T) {
	socketPath, _ := startTestServer(t)

	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.Ping(time.Second); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestServerErrorResponse(t *testing.T) {
	socketPath, _ := startTestServer(t)

	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Request(MsgStatusRequest, nil, time.Second); err == nil {
		t.Error("expected daemon error for unsupported request")
	}
}

func TestServerMultipleRequestsOneConnection(t *testing.T) {
	socketPath, _ := startTestServer(t)

	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	for i := 0; i < 5; i++ {
		if err := client.Ping(time.Second); err != nil {
			t.Fatalf("ping %d failed: %v", i, err)
		}
	}
}

func TestServerReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "gamepadd.sock")

	srv1 := NewServer(socketPath, HandlerFunc(echoHandler), serverLogger(t))
	if err := srv1.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	srv1.Stop()

	srv2 := NewServer(socketPath, HandlerFunc(echoHandler), serverLogger(t))
	if err := srv2.Start(); err != nil {
		t.Fatalf("second start over stale socket: %v", err)
	}
	srv2.Stop()
}

func TestServerStopClosesIdleConnections(t *testing.T) {
	socketPath, srv := startTestServer(t)

	// A client that connects and then goes silent must not be able to
	// stall shutdown; Stop closes it rather than waiting for EOF.
	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an idle client connection")
	}
}

func TestVerifyPeerSameUser(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "peer.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			defer conn.Close()
			time.Sleep(100 * time.Millisecond)
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer conn.Close()

	ok, err := VerifyPeerIsCurrentUser(conn)
	if err != nil {
		t.Fatalf("VerifyPeerIsCurrentUser: %v", err)
	}
	if !ok {
		t.Error("connection from the same user should be accepted")
	}
}

func TestServerStopRemovesSocket(t *testing.T) {
	socketPath, srv := startTestServer(t)
	srv.Stop()

	if _, err := Dial(socketPath, 100*time.Millisecond); err == nil {
		t.Error("socket should be gone after Stop")
	}
}
