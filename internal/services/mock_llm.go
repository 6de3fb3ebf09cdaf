package services

import (
	"context"
	"encoding/json"
	"sync"
)

// MockTextService is a TextService for tests
type MockTextService struct {
	GenerateStructuredFunc func(ctx context.Context, req StructuredRequest) (json.RawMessage, error)

	// Track calls for testing
	Calls []StructuredRequest

	mu sync.Mutex // protects all fields above
}

func NewMockTextService() *MockTextService {
	return &MockTextService{Calls: make([]StructuredRequest, 0)}
}

func (m *MockTextService) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.GenerateStructuredFunc
	m.mu.Unlock()

	// Called outside the lock so concurrent pipeline branches are not serialized.
	if fn != nil {
		return fn(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

// SetError makes every call fail with err
func (m *MockTextService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateStructuredFunc = func(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
		return nil, err
	}
}

// GetCalls returns a copy of the recorded requests
func (m *MockTextService) GetCalls() []StructuredRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]StructuredRequest, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}

// CallsFor returns the recorded requests for one schema
func (m *MockTextService) CallsFor(schema string) []StructuredRequest {
	var out []StructuredRequest
	for _, c := range m.GetCalls() {
		if c.Schema.Name == schema {
			out = append(out, c)
		}
	}
	return out
}

// MockImageService is an ImageService for tests
type MockImageService struct {
	GenerateImageFunc func(ctx context.Context, req ImageRequest) (string, error)

	Calls []ImageRequest

	mu sync.Mutex
}

func NewMockImageService() *MockImageService {
	return &MockImageService{Calls: make([]ImageRequest, 0)}
}

func (m *MockImageService) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.GenerateImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return "https://images.example/mock.jpg", nil
}

// SetError makes every call fail with err
func (m *MockImageService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageFunc = func(ctx context.Context, req ImageRequest) (string, error) {
		return "", err
	}
}

// GetCalls returns a copy of the recorded requests
func (m *MockImageService) GetCalls() []ImageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ImageRequest, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}
