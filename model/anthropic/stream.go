package anthropic

import (
	"context"
	"io"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cadforge/codepilot/model"
)

// streamer adapts an Anthropic Messages streaming response to model.Streamer.
// Only text deltas, usage, and stop events are translated; the pipeline never
// streams tool calls or thinking.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]

	chunks chan model.Chunk

	errMu    sync.Mutex
	errSet   bool
	finalErr error
}

func newStreamer(stream *ssestream.Stream[sdk.MessageStreamEventUnion]) model.Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &streamer{ctx: ctx, cancel: cancel, stream: stream, chunks: make(chan model.Chunk, 32)}
	go s.run()
	return s
}

func (s *streamer) Recv() (model.Chunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
		if err := s.err(); err != nil {
			return model.Chunk{}, err
		}
		return model.Chunk{}, io.EOF
	case <-s.ctx.Done():
		err := s.ctx.Err()
		s.setErr(err)
		return model.Chunk{}, err
	}
}

func (s *streamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *streamer) run() {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	var stopReason string
	for s.stream.Next() {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
				if !s.emit(model.Chunk{Type: model.ChunkTypeText, Text: delta.Text}) {
					return
				}
			}
		case sdk.MessageDeltaEvent:
			stopReason = string(ev.Delta.StopReason)
			usage := model.TokenUsage{
				InputTokens:      int(ev.Usage.InputTokens),
				OutputTokens:     int(ev.Usage.OutputTokens),
				TotalTokens:      int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
				CacheReadTokens:  int(ev.Usage.CacheReadInputTokens),
				CacheWriteTokens: int(ev.Usage.CacheCreationInputTokens),
			}
			if !s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage}) {
				return
			}
		case sdk.MessageStopEvent:
			if !s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: stopReason}) {
				return
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		s.setErr(err)
	}
}

func (s *streamer) emit(c model.Chunk) bool {
	select {
	case <-s.ctx.Done():
		return false
	case s.chunks <- c:
		return true
	}
}

func (s *streamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.errSet {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *streamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}
