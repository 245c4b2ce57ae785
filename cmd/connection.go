// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
	passwordEnv        = "BDSHOT_PASSWORD"
)

// ErrLinkClosed is returned by Read once the bridge stream has ended.
var ErrLinkClosed = errors.New("link closed")

// Link is the byte stream from a capture bridge. The bridge only talks, so a
// link is read-only.
type Link interface {
	io.ReadCloser
}

//////////////////////////////////////////////////////////////
// Serial
//////////////////////////////////////////////////////////////

type serialLink struct {
	port serial.Port
}

func (l *serialLink) Read(p []byte) (int, error) { return l.port.Read(p) }
func (l *serialLink) Close() error               { return l.port.Close() }

// OpenSerialLink opens a bridge on a serial port, 8N1.
func OpenSerialLink(name string, baud int) (Link, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	// Stale bytes from before we opened would only cost a resync
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port %s: %w", name, err)
	}
	return &serialLink{port: port}, nil
}

//////////////////////////////////////////////////////////////
// WebSocket
//////////////////////////////////////////////////////////////

// wsLink streams the payload of consecutive binary messages.
type wsLink struct {
	conn   *websocket.Conn
	msg    io.Reader
	closed bool
}

func (l *wsLink) Read(p []byte) (int, error) {
	for {
		if l.msg == nil {
			if l.closed {
				return 0, ErrLinkClosed
			}
			kind, r, err := l.conn.NextReader()
			if err != nil {
				l.closed = true
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, ErrLinkClosed
				}
				return 0, err
			}
			// Text frames carry bridge status lines, not records
			if kind != websocket.BinaryMessage {
				continue
			}
			l.msg = r
		}

		n, err := l.msg.Read(p)
		if err == io.EOF {
			l.msg = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (l *wsLink) Close() error { return l.conn.Close() }

// wsOptions describes a bridge reachable over WebSocket.
type wsOptions struct {
	URL        string
	Username   string
	Password   string
	SkipVerify bool
}

// DialWebSocketLink connects to a bridge over ws:// or wss:// with optional
// HTTP Basic auth.
func DialWebSocketLink(opts wsOptions) (Link, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.SkipVerify}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return &wsLink{conn: conn}, nil
}

// readPassword takes the password from the environment, or asks for it on
// the terminal without echo.
func readPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	// Piped input
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

//////////////////////////////////////////////////////////////
// Recording
//////////////////////////////////////////////////////////////

// fileLink replays a stream written by simulate --record.
type fileLink struct {
	f *os.File
	r *bufio.Reader
}

func (l *fileLink) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err == io.EOF {
		err = ErrLinkClosed
		if n > 0 {
			err = nil
		}
	}
	return n, err
}

func (l *fileLink) Close() error { return l.f.Close() }

// OpenFileLink opens a recorded capture stream.
func OpenFileLink(path string) (Link, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return &fileLink{f: f, r: bufio.NewReader(f)}, nil
}

//////////////////////////////////////////////////////////////
// Selection
//////////////////////////////////////////////////////////////

// OpenLink opens the link selected by the persistent flags and describes it.
func OpenLink() (Link, string, error) {
	switch {
	case inputFile != "":
		l, err := OpenFileLink(inputFile)
		if err != nil {
			return nil, "", err
		}
		return l, fmt.Sprintf("File: %s", inputFile), nil

	case wsURL != "":
		opts := wsOptions{URL: wsURL, Username: wsUsername, SkipVerify: wsNoSSLVerify}
		if wsUsername != "" {
			pw, err := readPassword()
			if err != nil {
				return nil, "", err
			}
			opts.Password = pw
		}
		l, err := DialWebSocketLink(opts)
		if err != nil {
			return nil, "", err
		}
		return l, fmt.Sprintf("WebSocket: %s", wsURL), nil

	case portName != "":
		l, err := OpenSerialLink(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return l, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --file must be specified")
}
