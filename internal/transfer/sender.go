package transfer

import (
	"encoding/json"
	"io"
	"time"
)

// Sender fragments one binary object into chunk frames bracketed by a
// metadata frame and an end marker. Each chunk is sent only after the
// previous chunk's read completes, bounding memory to one chunk in
// flight.
type Sender struct {
	ch        Channel
	chunkSize int
	now       func() time.Time
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithChunkSize overrides the default chunk size.
func WithChunkSize(size int) SenderOption {
	return func(s *Sender) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// withClock fixes the metadata timestamp source, for tests.
func withClock(now func() time.Time) SenderOption {
	return func(s *Sender) { s.now = now }
}

// NewSender creates a Sender over ch.
func NewSender(ch Channel, opts ...SenderOption) *Sender {
	s := &Sender{
		ch:        ch,
		chunkSize: DefaultChunkSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendFile streams size bytes from r as one transfer. A read failure
// aborts the send loop without an end marker; the protocol has no abort
// frame, so the receiver stays open until the next metadata frame.
func (s *Sender) SendFile(name, mime string, size int64, r io.Reader) error {
	meta := Metadata{
		Type:      "file",
		Name:      name,
		Mime:      mime,
		Size:      size,
		Chunks:    ChunkCount(size, s.chunkSize),
		Timestamp: s.now().UnixMilli(),
	}
	header, err := json.Marshal(meta)
	if err != nil {
		return NewFileError("marshal metadata", name, err)
	}
	if err := s.ch.SendText(MetaPrefix + string(header)); err != nil {
		return NewFileError("send metadata", name, err)
	}

	buf := make([]byte, s.chunkSize)
	remaining := size
	for remaining > 0 {
		want := int64(s.chunkSize)
		if remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(r, buf[:want])
		if err != nil {
			return NewFileError("read chunk", name, err)
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		if err := s.ch.Send(chunk); err != nil {
			return NewFileError("send chunk", name, err)
		}
		remaining -= int64(n)
	}

	if err := s.ch.SendText(EndMarker); err != nil {
		return NewFileError("send end marker", name, err)
	}
	return nil
}
