package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"
)

type frame struct {
	text bool
	str  string
	data []byte
}

// fakeChannel records frames in send order.
type fakeChannel struct {
	frames  []frame
	sendErr error
}

func (c *fakeChannel) SendText(s string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame{text: true, str: s})
	return nil
}

func (c *fakeChannel) Send(data []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, frame{data: buf})
	return nil
}

// pipe replays recorded frames into a receiver.
func (c *fakeChannel) pipe(r *Receiver) {
	for _, f := range c.frames {
		if f.text {
			r.HandleText(f.str)
		} else {
			r.HandleBinary(f.data)
		}
	}
}

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 100, DefaultChunkSize, DefaultChunkSize + 1, 40000, 100000}
	chunkSizes := []int{7, 1024, DefaultChunkSize}

	for _, size := range sizes {
		for _, chunkSize := range chunkSizes {
			t.Run(fmt.Sprintf("size=%d/chunk=%d", size, chunkSize), func(t *testing.T) {
				payload := make([]byte, size)
				rand.New(rand.NewSource(int64(size + chunkSize))).Read(payload)

				ch := &fakeChannel{}
				s := NewSender(ch, WithChunkSize(chunkSize), withClock(fixedClock))
				if err := s.SendFile("photo.jpg", "image/jpeg", int64(size), bytes.NewReader(payload)); err != nil {
					t.Fatalf("send: %v", err)
				}

				wantChunks := ChunkCount(int64(size), chunkSize)
				if got := len(ch.frames); got != wantChunks+2 {
					t.Fatalf("frame count = %d, want %d chunks + meta + end", got, wantChunks)
				}

				var files []File
				r := NewReceiver(func(f File) { files = append(files, f) })
				ch.pipe(r)

				if len(files) != 1 {
					t.Fatalf("received %d files, want 1", len(files))
				}
				got := files[0]
				if !bytes.Equal(got.Data, payload) {
					t.Fatalf("reassembled payload differs from original")
				}
				if got.Meta.Name != "photo.jpg" || got.Meta.Mime != "image/jpeg" {
					t.Fatalf("metadata = %+v", got.Meta)
				}
				if got.Meta.Size != int64(size) || got.Meta.Chunks != wantChunks {
					t.Fatalf("metadata size/chunks = %d/%d, want %d/%d",
						got.Meta.Size, got.Meta.Chunks, size, wantChunks)
				}
				if r.Open() {
					t.Fatalf("transfer context still open after end marker")
				}
			})
		}
	}
}

func TestFortyThousandByteFraming(t *testing.T) {
	payload := make([]byte, 40000)
	ch := &fakeChannel{}
	s := NewSender(ch, withClock(fixedClock))
	if err := s.SendFile("capture.jpg", "image/jpeg", 40000, bytes.NewReader(payload)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(ch.frames) != 5 {
		t.Fatalf("frame count = %d, want meta + 3 chunks + end", len(ch.frames))
	}
	if !ch.frames[0].text || !strings.HasPrefix(ch.frames[0].str, MetaPrefix) {
		t.Fatalf("first frame is not a metadata frame")
	}
	if !ch.frames[4].text || ch.frames[4].str != EndMarker {
		t.Fatalf("last frame is not the end marker")
	}
	for i, want := range []int{16384, 16384, 7232} {
		if got := len(ch.frames[i+1].data); got != want {
			t.Fatalf("chunk %d length = %d, want %d", i, got, want)
		}
	}

	var progress []float64
	r := NewReceiver(func(File) {}, WithProgress(func(p float64) {
		progress = append(progress, p)
	}))
	ch.pipe(r)

	want := []float64{100.0 / 3, 200.0 / 3, 100}
	if len(progress) != len(want) {
		t.Fatalf("progress reports = %v", progress)
	}
	for i := range want {
		if math.Abs(progress[i]-want[i]) > 0.01 {
			t.Fatalf("progress[%d] = %.2f, want %.2f", i, progress[i], want[i])
		}
	}
}

func TestZeroLengthFile(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(ch, withClock(fixedClock))
	if err := s.SendFile("empty.bin", "application/octet-stream", 0, bytes.NewReader(nil)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(ch.frames) != 2 {
		t.Fatalf("frame count = %d, want metadata + end only", len(ch.frames))
	}

	var files []File
	r := NewReceiver(func(f File) { files = append(files, f) })
	ch.pipe(r)

	if len(files) != 1 || len(files[0].Data) != 0 {
		t.Fatalf("zero-length round trip failed: %+v", files)
	}
	if files[0].Meta.Chunks != 0 {
		t.Fatalf("declared chunks = %d, want 0", files[0].Meta.Chunks)
	}
}

func TestChunkWithNoOpenTransferIsDropped(t *testing.T) {
	r := NewReceiver(func(File) { t.Fatal("no file should be delivered") })
	r.HandleBinary([]byte("stray"))
	r.HandleText(EndMarker)
	if r.Open() {
		t.Fatalf("receiver opened a transfer from a stray chunk")
	}
}

func TestNewMetadataDiscardsIncompleteTransfer(t *testing.T) {
	first := &fakeChannel{}
	s := NewSender(first, WithChunkSize(4), withClock(fixedClock))
	if err := s.SendFile("a.bin", "application/octet-stream", 8, bytes.NewReader(make([]byte, 8))); err != nil {
		t.Fatalf("send: %v", err)
	}

	var files []File
	r := NewReceiver(func(f File) { files = append(files, f) })

	// Replay the first transfer without its end marker, then a complete
	// second transfer.
	for _, f := range first.frames[:len(first.frames)-1] {
		if f.text {
			r.HandleText(f.str)
		} else {
			r.HandleBinary(f.data)
		}
	}

	second := &fakeChannel{}
	payload := []byte("fresh")
	s2 := NewSender(second, WithChunkSize(4), withClock(fixedClock))
	if err := s2.SendFile("b.bin", "application/octet-stream", int64(len(payload)), bytes.NewReader(payload)); err != nil {
		t.Fatalf("send: %v", err)
	}
	second.pipe(r)

	if len(files) != 1 {
		t.Fatalf("delivered %d files, want only the second", len(files))
	}
	if files[0].Meta.Name != "b.bin" || !bytes.Equal(files[0].Data, payload) {
		t.Fatalf("second transfer corrupted: %+v", files[0])
	}
}

type failingReader struct {
	data []byte
	off  int
	stop int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.off >= f.stop {
		return 0, errors.New("device gone")
	}
	n := copy(p, f.data[f.off:f.stop])
	f.off += n
	return n, nil
}

func TestSenderReadFailureAbortsWithoutEndMarker(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(ch, WithChunkSize(8), withClock(fixedClock))

	r := &failingReader{data: make([]byte, 32), stop: 16}
	err := s.SendFile("broken.bin", "application/octet-stream", 32, r)
	if err == nil {
		t.Fatalf("expected read failure to surface")
	}

	for _, f := range ch.frames {
		if f.text && f.str == EndMarker {
			t.Fatalf("end marker sent despite aborted transfer")
		}
	}
	// Metadata plus the two chunks read before the failure.
	if len(ch.frames) != 3 {
		t.Fatalf("frame count = %d, want metadata + 2 chunks", len(ch.frames))
	}
}

var _ io.Reader = (*failingReader)(nil)
