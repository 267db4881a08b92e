// Package storagetest provides an in-memory storage.Backend for tests.
package storagetest

import (
	"context"
	"sync"

	"github.com/chxlky/contract-kanban/internal/storage"
)

// Memory keeps blobs in maps. The Fail* fields inject errors into the
// matching operation.
type Memory struct {
	mu      sync.Mutex
	objects map[storage.Bucket]map[string][]byte

	FailPut    error
	FailCopy   error
	FailDelete map[storage.Bucket]error
}

func NewMemory() *Memory {
	return &Memory{
		objects: map[storage.Bucket]map[string][]byte{
			storage.Active: {},
			storage.Trash:  {},
		},
		FailDelete: map[storage.Bucket]error{},
	}
}

func (m *Memory) Put(ctx context.Context, data []byte, name string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return storage.Object{}, m.FailPut
	}
	key := storage.NewKey(name)
	m.objects[storage.Active][key] = append([]byte(nil), data...)
	return storage.Object{Key: key, URL: m.URL(storage.Active, key)}, nil
}

func (m *Memory) Delete(ctx context.Context, b storage.Bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailDelete[b]; err != nil {
		return err
	}
	if _, ok := m.objects[b][key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects[b], key)
	return nil
}

func (m *Memory) Copy(ctx context.Context, key string, from, to storage.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCopy != nil {
		return m.FailCopy
	}
	data, ok := m.objects[from][key]
	if !ok {
		return storage.ErrNotFound
	}
	m.objects[to][key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) URL(b storage.Bucket, key string) string {
	return "mem://" + b.String() + "/" + key
}

// Has reports whether key is stored in bucket b.
func (m *Memory) Has(b storage.Bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[b][key]
	return ok
}

// Len is the number of blobs in bucket b.
func (m *Memory) Len(b storage.Bucket) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects[b])
}

// Seed stores data under key directly, bypassing key generation.
func (m *Memory) Seed(b storage.Bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[b][key] = data
}
