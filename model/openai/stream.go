package openai

import (
	"context"
	"io"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/packages/ssestream"

	"github.com/cadforge/codepilot/model"
)

// streamer adapts an OpenAI chat completion stream to model.Streamer.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[openai.ChatCompletionChunk]

	chunks chan model.Chunk

	errMu    sync.Mutex
	errSet   bool
	finalErr error
}

func newStreamer(stream *ssestream.Stream[openai.ChatCompletionChunk]) model.Streamer {
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

	for s.stream.Next() {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		chunk := s.stream.Current()
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !s.emit(model.Chunk{Type: model.ChunkTypeText, Text: choice.Delta.Content}) {
					return
				}
			}
			if choice.FinishReason != "" {
				if !s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: choice.FinishReason}) {
					return
				}
			}
		}
		if chunk.Usage.TotalTokens > 0 {
			usage := model.TokenUsage{
				InputTokens:     int(chunk.Usage.PromptTokens),
				OutputTokens:    int(chunk.Usage.CompletionTokens),
				TotalTokens:     int(chunk.Usage.TotalTokens),
				CacheReadTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
			}
			if !s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage}) {
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
