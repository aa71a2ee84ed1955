package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"
)

// ContentType is the media type of an emission stream.
const ContentType = "application/x-ndjson"

// ErrClosed is returned by Emit after the stream failed or was closed.
var ErrClosed = errors.New("stream closed")

// Flusher is implemented by writers that buffer, such as bufio.Writer.
type Flusher interface {
	Flush() error
}

// Emitter writes one NDJSON frame per Emit. It is safe for concurrent use;
// frames are never interleaved. The first write error is sticky: later Emit
// calls return ErrClosed wrapping it, which callers treat as the consumer
// having gone away.
type Emitter struct {
	mu     sync.Mutex
	writer io.Writer
	err    error
	frames int
}

// NewEmitter returns an emitter over writer. If writer implements Flusher it
// is flushed after every frame.
func NewEmitter(writer io.Writer) *Emitter {
	return &Emitter{writer: writer}
}

// Emit serializes value as one frame. Map keys are sorted so identical values
// always produce identical bytes.
func (emitter *Emitter) Emit(value any) error {
	frame, err := sonic.ConfigStd.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	frame = append(frame, '\n')

	emitter.mu.Lock()
	defer emitter.mu.Unlock()

	if emitter.err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, emitter.err)
	}
	if _, err = emitter.writer.Write(frame); err == nil {
		if flusher, ok := emitter.writer.(Flusher); ok {
			err = flusher.Flush()
		}
	}
	if err != nil {
		emitter.err = err
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	emitter.frames++
	return nil
}

// Close marks the emitter closed. Further Emit calls fail.
func (emitter *Emitter) Close() {
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if emitter.err == nil {
		emitter.err = io.ErrClosedPipe
	}
}

// Frames returns how many frames were written successfully.
func (emitter *Emitter) Frames() int {
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	return emitter.frames
}

// Err returns the error that closed the stream, if any.
func (emitter *Emitter) Err() error {
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	return emitter.err
}
