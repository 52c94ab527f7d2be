package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a testify mock of queue.Queue.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, name string, payload interface{}, delay time.Duration) error {
	args := m.Called(ctx, name, payload, delay)
	return args.Error(0)
}
