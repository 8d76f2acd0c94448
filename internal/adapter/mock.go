package adapter

import (
	"context"

	"checkout-relay/internal/model"
)

// MockLinker implements CheckoutLinker for testing.
// Each method can be configured via function fields.
type MockLinker struct {
	CheckConfigFunc func() error
	CreateLinkFunc  func(ctx context.Context, origin string, in *model.CheckoutInput) (*model.CheckoutLink, error)
}

// CheckConfig calls the configured CheckConfigFunc or reports a valid configuration.
func (m *MockLinker) CheckConfig() error {
	if m.CheckConfigFunc != nil {
		return m.CheckConfigFunc()
	}
	return nil
}

// CreateLink calls the configured CreateLinkFunc or returns an error.
func (m *MockLinker) CreateLink(ctx context.Context, origin string, in *model.CheckoutInput) (*model.CheckoutLink, error) {
	if m.CreateLinkFunc != nil {
		return m.CreateLinkFunc(ctx, origin, in)
	}
	return nil, model.NewInternalError(nil)
}

// MockTasks implements TaskCreator for testing.
type MockTasks struct {
	CheckConfigFunc func() error
	CreateTaskFunc  func(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error)
	RelayOrderFunc  func(ctx context.Context, sum *model.OrderSummary) (*model.TaskResult, error)
}

// CheckConfig calls the configured CheckConfigFunc or reports a valid configuration.
func (m *MockTasks) CheckConfig() error {
	if m.CheckConfigFunc != nil {
		return m.CheckConfigFunc()
	}
	return nil
}

// CreateTask calls the configured CreateTaskFunc or returns an error.
func (m *MockTasks) CreateTask(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error) {
	if m.CreateTaskFunc != nil {
		return m.CreateTaskFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// RelayOrder calls the configured RelayOrderFunc or returns an error.
func (m *MockTasks) RelayOrder(ctx context.Context, sum *model.OrderSummary) (*model.TaskResult, error) {
	if m.RelayOrderFunc != nil {
		return m.RelayOrderFunc(ctx, sum)
	}
	return nil, model.NewInternalError(nil)
}

// Verify mocks implement the interfaces at compile time.
var (
	_ CheckoutLinker = (*MockLinker)(nil)
	_ TaskCreator    = (*MockTasks)(nil)
)
