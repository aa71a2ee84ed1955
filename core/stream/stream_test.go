package stream

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEmitter_OneLinePerFrame(t *testing.T) {
	var output bytes.Buffer
	emitter := NewEmitter(&output)

	require.NoError(t, emitter.Emit(map[string]any{"b": 1, "a": "multi\nline"}))
	require.NoError(t, emitter.Emit(map[string]any{"done": true}))

	assert.Equal(t, "{\"a\":\"multi\\nline\",\"b\":1}\n{\"done\":true}\n", output.String())
	assert.Equal(t, 2, emitter.Frames())
}

func TestEmitter_FlushesBufferedWriters(t *testing.T) {
	var output bytes.Buffer
	buffered := bufio.NewWriter(&output)
	emitter := NewEmitter(buffered)

	require.NoError(t, emitter.Emit(map[string]any{"x": 1}))
	assert.Equal(t, "{\"x\":1}\n", output.String())
}

type failingWriter struct{ writes int }

func (writer *failingWriter) Write(p []byte) (int, error) {
	writer.writes++
	return 0, errors.New("connection reset")
}

func TestEmitter_WriteErrorIsSticky(t *testing.T) {
	writer := &failingWriter{}
	emitter := NewEmitter(writer)

	require.ErrorIs(t, emitter.Emit(map[string]any{"a": 1}), ErrClosed)
	require.ErrorIs(t, emitter.Emit(map[string]any{"a": 2}), ErrClosed)
	assert.Equal(t, 1, writer.writes)
	assert.Error(t, emitter.Err())
}

func TestEmitter_ConcurrentFramesDoNotInterleave(t *testing.T) {
	var output bytes.Buffer
	emitter := NewEmitter(&output)

	var waitGroup sync.WaitGroup
	for worker := 0; worker < 16; worker++ {
		waitGroup.Add(1)
		go func(worker int) {
			defer waitGroup.Done()
			_ = emitter.Emit(map[string]any{"worker": worker, "text": strings.Repeat("x", 200)})
		}(worker)
	}
	waitGroup.Wait()

	frames, err := ReadAll(&output)
	require.NoError(t, err)
	assert.Len(t, frames, 16)
}

func TestDecoder_TwoFramesInOneChunk(t *testing.T) {
	var decoder Decoder

	frames, err := decoder.Feed([]byte("{\"a\":1}\n{\"b\":2}\n"))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, int64(1), frames[0].Get("a").Int())
	assert.Equal(t, int64(2), frames[1].Get("b").Int())
	assert.NoError(t, decoder.Close())
}

func TestDecoder_PrefixThatParsesIsNotEmittedEarly(t *testing.T) {
	var decoder Decoder

	frames, err := decoder.Feed([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = decoder.Feed([]byte("\n"))
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestDecoder_TruncatedTrailingFrame(t *testing.T) {
	var decoder Decoder

	_, err := decoder.Feed([]byte("{\"a\":1}\n{\"b\":"))
	require.NoError(t, err)
	assert.ErrorIs(t, decoder.Close(), ErrIncompleteFrame)
	assert.Equal(t, 5, decoder.Pending())
}

func TestDecoder_MalformedLine(t *testing.T) {
	var decoder Decoder

	frames, err := decoder.Feed([]byte("{\"ok\":true}\nnot json\n"))
	assert.Len(t, frames, 1)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecoder_PropertyAnySplitReassembles(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.StringMatching(`[a-z{}"\\\n ]{0,12}`), 1, 8).Draw(t, "values")

		var output bytes.Buffer
		emitter := NewEmitter(&output)
		for index, value := range values {
			if err := emitter.Emit(map[string]any{"index": index, "value": value}); err != nil {
				t.Fatalf("emit: %v", err)
			}
		}
		encoded := output.Bytes()

		cuts := rapid.SliceOfN(rapid.IntRange(0, len(encoded)), 0, 6).Draw(t, "cuts")
		var decoder Decoder
		var decoded []string
		start := 0
		for _, cut := range append(cuts, len(encoded)) {
			if cut < start {
				continue
			}
			frames, err := decoder.Feed(encoded[start:cut])
			if err != nil {
				t.Fatalf("feed: %v", err)
			}
			for _, frame := range frames {
				decoded = append(decoded, frame.Get("value").String())
			}
			start = cut
		}

		if err := decoder.Close(); err != nil {
			t.Fatalf("leftover bytes: %v", err)
		}
		if len(decoded) != len(values) {
			t.Fatalf("decoded %d frames, want %d", len(decoded), len(values))
		}
		for index := range values {
			if decoded[index] != values[index] {
				t.Fatalf("frame %d: got %q want %q", index, decoded[index], values[index])
			}
		}
	})
}
