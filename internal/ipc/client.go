package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Client is a control connection to a running daemon.
type Client struct {
	conn   net.Conn
	nextID atomic.Uint32
}

// Dial connects to the daemon's control socket.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Request sends a message and waits for the matching response.
func (c *Client) Request(t MessageType, payload any, timeout time.Duration) (*Message, error) {
	id := c.nextID.Add(1)
	msg, err := NewMessage(t, id, payload)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		deadline := time.Now().Add(timeout)
		if err := c.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := WriteMessage(c.conn, msg); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	resp, err := ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.ID != id {
		return nil, fmt.Errorf("response ID mismatch: got %d, want %d", resp.ID, id)
	}
	if resp.Type == MsgError {
		var e ErrorResponse
		if err := json.Unmarshal(resp.Payload, &e); err == nil && e.Message != "" {
			return nil, fmt.Errorf("daemon error: %s", e.Message)
		}
		return nil, fmt.Errorf("daemon returned an error")
	}

	return resp, nil
}

// Ping checks that the daemon is responsive.
func (c *Client) Ping(timeout time.Duration) error {
	resp, err := c.Request(MsgPing, nil, timeout)
	if err != nil {
		return err
	}
	if resp.Type != MsgPong {
		return fmt.Errorf("unexpected response type 0x%04x", resp.Type)
	}
	return nil
}

// Status fetches the daemon status snapshot.
func (c *Client) Status(timeout time.Duration) (*StatusResponse, error) {
	resp, err := c.Request(MsgStatusRequest, nil, timeout)
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := json.Unmarshal(resp.Payload, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Devices fetches the monitored device list.
func (c *Client) Devices(timeout time.Duration) ([]DeviceInfo, error) {
	resp, err := c.Request(MsgDevicesRequest, nil, timeout)
	if err != nil {
		return nil, err
	}
	var devices []DeviceInfo
	if err := json.Unmarshal(resp.Payload, &devices); err != nil {
		return nil, fmt.Errorf("decode devices: %w", err)
	}
	return devices, nil
}

// Reload asks the daemon to reload its configuration file.
func (c *Client) Reload(timeout time.Duration) error {
	_, err := c.Request(MsgReloadConfig, nil, timeout)
	return err
}

// Shutdown asks the daemon to stop.
func (c *Client) Shutdown(timeout time.Duration) error {
	_, err := c.Request(MsgShutdown, nil, timeout)
	return err
}
