package testhelpers

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockMailer is a testify mock of service.Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}
