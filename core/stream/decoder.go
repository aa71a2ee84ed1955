package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedFrame is returned for a complete line that is not a JSON
	// object.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrIncompleteFrame is returned by Close when bytes remain after the
	// last newline.
	ErrIncompleteFrame = errors.New("incomplete trailing frame")
)

// Decoder reassembles frames from arbitrarily split chunks. The buffer is
// reset to the bytes after the last complete frame on every Feed.
type Decoder struct {
	buffer []byte
}

// Feed appends chunk and returns every frame it completed, in order. A
// malformed line is reported after the frames before it.
func (decoder *Decoder) Feed(chunk []byte) ([]gjson.Result, error) {
	decoder.buffer = append(decoder.buffer, chunk...)

	var frames []gjson.Result
	for {
		newline := bytes.IndexByte(decoder.buffer, '\n')
		if newline < 0 {
			return frames, nil
		}
		line := bytes.TrimSpace(decoder.buffer[:newline])
		decoder.buffer = decoder.buffer[newline+1:]
		if len(line) == 0 {
			continue
		}

		if !gjson.ValidBytes(line) || line[0] != '{' {
			return frames, fmt.Errorf("%w: %q", ErrMalformedFrame, truncate(line))
		}
		frames = append(frames, gjson.ParseBytes(append([]byte(nil), line...)))
	}
}

// Pending returns how many unterminated bytes are buffered.
func (decoder *Decoder) Pending() int { return len(decoder.buffer) }

// Close reports bytes left over after the last complete frame.
func (decoder *Decoder) Close() error {
	if len(bytes.TrimSpace(decoder.buffer)) > 0 {
		return fmt.Errorf("%w: %d bytes", ErrIncompleteFrame, len(decoder.buffer))
	}
	return nil
}

// Scan reads reader to the end and calls handle for every frame.
func Scan(reader io.Reader, handle func(frame gjson.Result) error) error {
	var decoder Decoder
	chunk := make([]byte, 4096)
	for {
		count, readErr := reader.Read(chunk)
		if count > 0 {
			frames, err := decoder.Feed(chunk[:count])
			for _, frame := range frames {
				if handleErr := handle(frame); handleErr != nil {
					return handleErr
				}
			}
			if err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			return decoder.Close()
		}
		if readErr != nil {
			return readErr
		}
	}
}

// ReadAll collects every frame of reader.
func ReadAll(reader io.Reader) ([]gjson.Result, error) {
	var frames []gjson.Result
	err := Scan(reader, func(frame gjson.Result) error {
		frames = append(frames, frame)
		return nil
	})
	return frames, err
}

func truncate(line []byte) string {
	if len(line) > 80 {
		return string(line[:80]) + "..."
	}
	return string(line)
}
