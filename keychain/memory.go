package keychain

import (
	"bytes"
	"context"
	"sync"
)

type recordKey struct {
	service string
	account string
}

type memoryKeychain struct {
	mutex   sync.Mutex
	records map[recordKey][]byte
}

var _ Keychain = (*memoryKeychain)(nil)

// NewMemory returns a process-local Keychain. Records are lost on exit; wrap
// it with NewEncrypted when the payloads must not sit in memory in the clear.
func NewMemory() Keychain {
	return &memoryKeychain{records: make(map[recordKey][]byte)}
}

func (m *memoryKeychain) Add(_ context.Context, q Query) Status {
	if !q.valid() {
		return StatusInvalidQuery
	}
	k := recordKey{q.Service, q.Account}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.records[k]; ok {
		return StatusDuplicateItem
	}
	m.records[k] = bytes.Clone(q.Data)
	return StatusSuccess
}

func (m *memoryKeychain) Find(_ context.Context, q Query) ([]byte, Status) {
	if !q.valid() {
		return nil, StatusInvalidQuery
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	data, ok := m.records[recordKey{q.Service, q.Account}]
	if !ok {
		return nil, StatusItemNotFound
	}
	return bytes.Clone(data), StatusSuccess
}

func (m *memoryKeychain) Delete(_ context.Context, q Query) Status {
	if !q.valid() {
		return StatusInvalidQuery
	}
	k := recordKey{q.Service, q.Account}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.records[k]; !ok {
		return StatusItemNotFound
	}
	delete(m.records, k)
	return StatusSuccess
}
