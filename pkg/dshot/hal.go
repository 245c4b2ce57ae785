// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

// OutputBank plays pin set/reset words on a port at the section clock. It
// runs once per call and reports completion through a CompletionHandler.
type OutputBank interface {
	StartPlayback(port int, words []uint32) error
}

// InputBank samples a port into dst at the capture clock. It runs once per
// call and reports completion through a CompletionHandler.
type InputBank interface {
	StartCapture(port int, dst []uint32) error
}

// CompletionHandler receives DMA events from a driver. Drivers may call it
// from any goroutine.
type CompletionHandler interface {
	HandleEvent(port int, ev Event)
}

// Event is a transfer notification from the hardware.
type Event int

// Event values
const (
	EventTransferComplete Event = iota
	EventHalfTransfer
	EventTransferError
	EventFIFOError
)

func (e Event) String() string {
	switch e {
	case EventTransferComplete:
		return "TRANSFER_COMPLETE"
	case EventHalfTransfer:
		return "HALF_TRANSFER"
	case EventTransferError:
		return "TRANSFER_ERROR"
	case EventFIFOError:
		return "FIFO_ERROR"
	default:
		return "UNKNOWN"
	}
}
