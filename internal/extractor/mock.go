package extractor

import (
	"context"
	"errors"
	"sync"
)

var errMockDrained = errors.New("no canned replies left")

// MockReply is a canned reply for MockProvider.
type MockReply struct {
	Text string
	Err  error
}

// MockProvider replays canned replies in FIFO order and records every
// request. Once the queue is drained it answers with Fallback, or fails
// when Fallback is empty.
type MockProvider struct {
	mu       sync.Mutex
	replies  []MockReply
	Fallback string
	Calls    []Request
}

func NewMockProvider(replies ...MockReply) *MockProvider {
	return &MockProvider{replies: replies}
}

func (m *MockProvider) Complete(_ context.Context, req Request) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if len(m.replies) == 0 {
		if m.Fallback == "" {
			return nil, &ProviderError{Provider: "mock", Err: errMockDrained}
		}
		return &Completion{Text: m.Fallback, Model: "mock"}, nil
	}

	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	return &Completion{Text: r.Text, Model: "mock"}, nil
}

func (m *MockProvider) ModelID() string { return "mock" }

// CallCount returns the number of Complete calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
