package domain

import "context"

type StreamStatus string

const (
	StreamCompleted   StreamStatus = "completed"
	StreamInterrupted StreamStatus = "interrupted"
)

// ChatStream is the observable result of one respond call: a finite,
// non-restartable sequence of text chunks followed by a terminal status.
// The chunk channel is unbuffered so the producer cannot run ahead of the
// consumer; that is what preserves emission order and backpressure.
type ChatStream struct {
	SessionID  string
	Candidates []RetrievedCandidate

	chunks chan string
	done   chan struct{}
	status StreamStatus
	err    error
}

func NewChatStream(sessionID string, candidates []RetrievedCandidate) *ChatStream {
	return &ChatStream{
		SessionID:  sessionID,
		Candidates: candidates,
		chunks:     make(chan string),
		done:       make(chan struct{}),
	}
}

// Chunks yields text fragments in generation order. The channel closes when
// the stream reaches a terminal state; Status and Err are valid after that.
func (s *ChatStream) Chunks() <-chan string {
	return s.chunks
}

// Emit hands one chunk to the consumer. It returns the context error when
// the consumer abandoned the stream before receiving.
func (s *ChatStream) Emit(ctx context.Context, chunk string) error {
	select {
	case s.chunks <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close settles the terminal state and closes the chunk channel. It must be
// called exactly once by the producer.
func (s *ChatStream) Close(status StreamStatus, err error) {
	s.status = status
	s.err = err
	close(s.done)
	close(s.chunks)
}

func (s *ChatStream) Status() StreamStatus {
	<-s.done
	return s.status
}

func (s *ChatStream) Err() error {
	<-s.done
	return s.err
}
