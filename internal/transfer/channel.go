package transfer

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Channel is the reliable, ordered, message-based channel the protocol
// runs over. Implementations must preserve send order.
type Channel interface {
	SendText(s string) error
	Send(data []byte) error
}

// Backpressure thresholds for the pion adapter. The SCTP send buffer is
// allowed to grow to the high watermark before sends block, and drains to
// the low watermark before they resume.
const (
	highWaterMark = 1024 * 1024
	lowWaterMark  = 256 * 1024

	sendTimeout = 60 * time.Second
)

// DataChannel adapts a pion data channel to the Channel interface, adding
// buffered-amount backpressure so a fast reader cannot overrun the
// transport's send buffer.
type DataChannel struct {
	dc    *webrtc.DataChannel
	ready chan struct{}
}

// NewDataChannel wraps an open pion data channel.
func NewDataChannel(dc *webrtc.DataChannel) *DataChannel {
	ch := &DataChannel{
		dc:    dc,
		ready: make(chan struct{}, 1),
	}
	dc.SetBufferedAmountLowThreshold(lowWaterMark)
	dc.OnBufferedAmountLow(func() {
		select {
		case ch.ready <- struct{}{}:
		default:
		}
	})
	return ch
}

func (ch *DataChannel) SendText(s string) error {
	if err := ch.waitForWindow(); err != nil {
		return err
	}
	return ch.dc.SendText(s)
}

func (ch *DataChannel) Send(data []byte) error {
	if err := ch.waitForWindow(); err != nil {
		return err
	}
	return ch.dc.Send(data)
}

// waitForWindow blocks until the buffered amount is below the high
// watermark.
func (ch *DataChannel) waitForWindow() error {
	if ch.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	if ch.dc.BufferedAmount() < highWaterMark {
		return nil
	}

	select {
	case <-ch.ready:
		return nil
	case <-time.After(sendTimeout):
		return WrapError("send", ErrBufferTimeout, "buffer not draining")
	}
}
