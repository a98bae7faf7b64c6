// Package transfer moves binary objects over a message-based channel with
// a bounded per-message payload size. The wire framing is a compatibility
// surface shared with web peers: one __META__ text frame, raw binary chunk
// frames, one __END__ text frame.
package transfer

// Frame literals. These must match between sender and receiver
// implementations.
const (
	MetaPrefix = "__META__"
	EndMarker  = "__END__"
)

// DefaultChunkSize is the per-message payload bound.
const DefaultChunkSize = 16 * 1024

// Metadata describes the object a chunk stream carries. Exactly one
// metadata frame precedes the chunks of a transfer.
type Metadata struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Mime      string `json:"mime"`
	Size      int64  `json:"size"`
	Chunks    int    `json:"chunks"`
	Timestamp int64  `json:"timestamp"`
}

// File is a fully reassembled transfer handed to the receiver's caller.
type File struct {
	Meta Metadata
	Data []byte
}

// ChunkCount returns ceil(size / chunkSize).
func ChunkCount(size int64, chunkSize int) int {
	if size <= 0 {
		return 0
	}
	return int((size + int64(chunkSize) - 1) / int64(chunkSize))
}
