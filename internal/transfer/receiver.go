package transfer

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pion/webrtc/v4"
)

// Receiver reassembles transfers from the frame stream. It relies on the
// channel preserving send order and delivering every frame exactly once.
type Receiver struct {
	meta   *Metadata
	chunks [][]byte

	onFile     func(File)
	onMeta     func(Metadata)
	onProgress func(float64)

	logger *slog.Logger
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithMetadataHandler registers a callback invoked when a metadata frame
// opens a new transfer.
func WithMetadataHandler(fn func(Metadata)) ReceiverOption {
	return func(r *Receiver) { r.onMeta = fn }
}

// WithProgress registers a callback reporting receivedChunks over the
// declared chunk count, as a percentage.
func WithProgress(fn func(percent float64)) ReceiverOption {
	return func(r *Receiver) { r.onProgress = fn }
}

// NewReceiver creates a Receiver delivering completed files to onFile.
func NewReceiver(onFile func(File), opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		onFile: onFile,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes the receiver to a pion data channel.
func (r *Receiver) Attach(dc *webrtc.DataChannel) {
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			r.HandleText(string(msg.Data))
		} else {
			r.HandleBinary(msg.Data)
		}
	})
}

// HandleText processes a metadata or end-marker frame. Unrecognised text
// frames are ignored.
func (r *Receiver) HandleText(frame string) {
	switch {
	case strings.HasPrefix(frame, MetaPrefix):
		var meta Metadata
		if err := json.Unmarshal([]byte(frame[len(MetaPrefix):]), &meta); err != nil {
			r.logger.Warn("bad metadata frame", "err", err)
			return
		}
		if r.meta != nil {
			// A new metadata frame discards any incomplete transfer.
			r.logger.Warn("discarding incomplete transfer", "name", r.meta.Name)
		}
		r.meta = &meta
		r.chunks = nil
		if r.onMeta != nil {
			r.onMeta(meta)
		}

	case frame == EndMarker:
		if r.meta == nil {
			r.logger.Warn("end marker with no open transfer")
			return
		}
		r.onFile(File{Meta: *r.meta, Data: r.assemble()})
		r.meta = nil
		r.chunks = nil
	}
}

// HandleBinary appends one chunk to the open transfer. Chunks arriving
// outside a transfer context are dropped.
func (r *Receiver) HandleBinary(data []byte) {
	if r.meta == nil {
		r.logger.Warn("chunk with no open transfer", "bytes", len(data))
		return
	}

	chunk := make([]byte, len(data))
	copy(chunk, data)
	r.chunks = append(r.chunks, chunk)

	if r.onProgress != nil && r.meta.Chunks > 0 {
		r.onProgress(float64(len(r.chunks)) / float64(r.meta.Chunks) * 100)
	}
}

// Open reports whether a transfer context is currently open.
func (r *Receiver) Open() bool {
	return r.meta != nil
}

// assemble concatenates the received chunks in receipt order.
func (r *Receiver) assemble() []byte {
	var total int
	for _, c := range r.chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range r.chunks {
		out = append(out, c...)
	}
	return out
}
