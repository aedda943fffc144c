// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOptions configures a serial-over-WebSocket bridge connection.
type WebSocketOptions struct {
	Username         string
	Password         string
	SkipTLSVerify    bool
	HandshakeTimeout time.Duration
}

// DialWebSocket connects to a bridge that relays serial bytes as binary
// WebSocket messages. HTTP Basic auth is sent when credentials are given.
func DialWebSocket(ctx context.Context, wsURL string, opts WebSocketOptions) (*WebSocketPort, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipTLSVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketPort(conn), nil
}

type wsMessage struct {
	data []byte
	err  error
}

// WebSocketPort adapts a WebSocket connection to a byte stream. A pump
// goroutine reads messages so that Read can time out without invalidating
// the connection.
type WebSocketPort struct {
	conn     *websocket.Conn
	messages chan wsMessage
	done     chan struct{}

	mu          sync.Mutex
	buf         []byte
	readTimeout time.Duration
	readErr     error

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocketPort wraps an established connection.
func NewWebSocketPort(conn *websocket.Conn) *WebSocketPort {
	w := &WebSocketPort{
		conn:     conn,
		messages: make(chan wsMessage, 64),
		done:     make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketPort) pump() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case w.messages <- wsMessage{err: err}:
			case <-w.done:
			}
			return
		}
		// Serial bytes travel in binary messages only
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.messages <- wsMessage{data: data}:
		case <-w.done:
			return
		}
	}
}

// Read returns buffered bytes, then waits for the next message. With a read
// timeout set it returns (0, nil) when none arrives in time.
func (w *WebSocketPort) Read(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}
	if w.readErr != nil {
		return 0, w.readErr
	}

	var timeout <-chan time.Time
	if w.readTimeout > 0 {
		timer := time.NewTimer(w.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case msg := <-w.messages:
		if msg.err != nil {
			w.readErr = msg.err
			return 0, msg.err
		}
		n := copy(p, msg.data)
		w.buf = msg.data[n:]
		return n, nil
	case <-timeout:
		return 0, nil
	case <-w.done:
		return 0, ErrClosed
	}
}

func (w *WebSocketPort) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetReadTimeout implements ReadTimeoutSetter.
func (w *WebSocketPort) SetReadTimeout(d time.Duration) error {
	w.mu.Lock()
	w.readTimeout = d
	w.mu.Unlock()
	return nil
}

// Close closes the connection and stops the pump.
func (w *WebSocketPort) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}
