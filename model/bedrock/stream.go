package bedrock

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cadforge/codepilot/model"
)

// streamer adapts a Bedrock ConverseStream event stream to model.Streamer.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *bedrockruntime.ConverseStreamEventStream

	chunks chan model.Chunk

	errMu    sync.Mutex
	errSet   bool
	finalErr error
}

func newStreamer(stream *bedrockruntime.ConverseStreamEventStream) model.Streamer {
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
	return s.stream.Close()
}

func (s *streamer) run() {
	defer close(s.chunks)
	defer func() {
		_ = s.stream.Close()
	}()

	events := s.stream.Events()
	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		case event, ok := <-events:
			if !ok {
				if err := s.stream.Err(); err != nil {
					s.setErr(translateError("converse_stream.recv", err))
				}
				return
			}
			if !s.handle(event) {
				return
			}
		}
	}
}

func (s *streamer) handle(event brtypes.ConverseStreamOutput) bool {
	switch ev := event.(type) {
	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		if delta, ok := ev.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok && delta.Value != "" {
			return s.emit(model.Chunk{Type: model.ChunkTypeText, Text: delta.Value})
		}
		return true
	case *brtypes.ConverseStreamOutputMemberMessageStop:
		return s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: string(ev.Value.StopReason)})
	case *brtypes.ConverseStreamOutputMemberMetadata:
		if ev.Value.Usage == nil {
			return true
		}
		u := ev.Value.Usage
		usage := model.TokenUsage{
			InputTokens:      int(derefInt32(u.InputTokens)),
			OutputTokens:     int(derefInt32(u.OutputTokens)),
			TotalTokens:      int(derefInt32(u.TotalTokens)),
			CacheReadTokens:  int(derefInt32(u.CacheReadInputTokens)),
			CacheWriteTokens: int(derefInt32(u.CacheWriteInputTokens)),
		}
		return s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage})
	}
	return true
}

func derefInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
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
