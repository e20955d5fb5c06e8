package hooks

import (
	"context"
	"io"

	"github.com/harborai/llm-gateway/internal/canonical"
)

// StreamIterator yields response chunks from a streaming completion.
//
// Next returns io.EOF when the underlying producer is exhausted. Iterators
// are finite if the upstream stream is finite and are not restartable.
// Wrappers installed by the streaming-iterator hook must preserve chunk
// ordering and forward termination and cancellation without suppressing it.
type StreamIterator interface {
	Next(ctx context.Context) (*canonical.StreamChunk, error)
	Close() error
}

// SliceStream is a StreamIterator over a fixed chunk slice. Used for fake
// streaming (a buffered response replayed as increments) and in tests.
type SliceStream struct {
	chunks []*canonical.StreamChunk
	pos    int
	closed bool
}

// NewSliceStream creates an iterator over the given chunks.
func NewSliceStream(chunks ...*canonical.StreamChunk) *SliceStream {
	return &SliceStream{chunks: chunks}
}

// Next returns the next chunk, or io.EOF when exhausted or closed.
func (s *SliceStream) Next(ctx context.Context) (*canonical.StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

// Close marks the stream exhausted.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

var _ StreamIterator = (*SliceStream)(nil)
