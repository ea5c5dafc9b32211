package mocks

import (
	"context"
	"sync"

	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/spam"
)

// MockNotifier records delivered events and signals each one on Delivered
type MockNotifier struct {
	mu        sync.Mutex
	Events    []notify.Event
	Err       error
	Delivered chan notify.Event
}

// Verify interface compliance
var _ notify.Notifier = (*MockNotifier)(nil)

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Delivered: make(chan notify.Event, 16)}
}

func (m *MockNotifier) Notify(ctx context.Context, event notify.Event) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()

	select {
	case m.Delivered <- event:
	default:
	}
	return m.Err
}

// Received returns a snapshot of the recorded events
func (m *MockNotifier) Received() []notify.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Event(nil), m.Events...)
}

// MockChecker answers every reputation check with Result or Err
type MockChecker struct {
	mu     sync.Mutex
	Result spam.Result
	Err    error
	Calls  []spam.Submission
}

// Verify interface compliance
var _ spam.Checker = (*MockChecker)(nil)

func (m *MockChecker) CheckComment(ctx context.Context, sub spam.Submission) (spam.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, sub)
	return m.Result, m.Err
}

// CallCount returns how many checks were made
func (m *MockChecker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
