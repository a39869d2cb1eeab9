package mocks

import (
	"context"
	"sync"
)

// MockBlobStore is a mock implementation of BlobStore for testing
type MockBlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// For tracking calls in tests
	GetCalls    []string
	PutCalls    []PutCall
	DeleteCalls []string

	GetErr    error
	PutErr    error
	DeleteErr error
}

// PutCall records parameters passed to Put
type PutCall struct {
	Key  string
	Data []byte
}

// NewMockBlobStore creates a new MockBlobStore
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		data:        make(map[string][]byte),
		GetCalls:    make([]string, 0),
		PutCalls:    make([]PutCall, 0),
		DeleteCalls: make([]string, 0),
	}
}

// Get returns the stored blob
func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, key)

	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Put stores a blob
func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls = append(m.PutCalls, PutCall{Key: key, Data: append([]byte(nil), data...)})

	if m.PutErr != nil {
		return m.PutErr
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes a blob
func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, key)

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.data, key)
	return nil
}

// SetData sets data directly for testing
func (m *MockBlobStore) SetData(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
}

// GetData gets data directly for testing (without recording the call)
func (m *MockBlobStore) GetData(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	return data, ok
}

// Reset clears all data, recorded calls and injected errors
func (m *MockBlobStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	m.GetCalls = make([]string, 0)
	m.PutCalls = make([]PutCall, 0)
	m.DeleteCalls = make([]string, 0)
	m.GetErr = nil
	m.PutErr = nil
	m.DeleteErr = nil
}
