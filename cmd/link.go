// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/Thermoquad/bdshot/pkg/bridge"
)

// maxReadErrors is how many consecutive read errors end the session.
const maxReadErrors = 10

// linkEvent is one outcome of feeding link bytes to the bridge decoder.
type linkEvent struct {
	packet  *bridge.Packet
	err     error
	sync    bool // first valid packet
	skipped int  // decode errors before sync
}

// readLink decodes bridge packets from conn until the connection closes.
// Decode errors before the first valid packet are counted, not reported.
// A lost connection, or maxReadErrors failed reads in a row, ends it with an
// error.
func readLink(conn Link, handle func(linkEvent)) error {
	decoder := bridge.NewDecoder()
	buf := make([]byte, 512)
	synchronized := false
	skipped := 0
	readErrors := 0

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrLinkClosed) {
				glog.Info("connection closed")
				return nil
			}
			if connectionLost(err) {
				return fmt.Errorf("connection lost: %w", err)
			}
			readErrors++
			if readErrors >= maxReadErrors {
				return fmt.Errorf("giving up after %d read errors: %w", readErrors, err)
			}
			glog.Warningf("read error: %v", err)
			continue
		}
		readErrors = 0

		for i := 0; i < n; i++ {
			packet, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				if synchronized {
					handle(linkEvent{err: decodeErr})
				} else {
					skipped++
				}
				continue
			}
			if packet == nil {
				continue
			}
			if !synchronized {
				synchronized = true
				handle(linkEvent{sync: true, skipped: skipped})
			}
			handle(linkEvent{packet: packet})
		}
	}
}

// connectionLost reports read errors no retry can recover from.
func connectionLost(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}
