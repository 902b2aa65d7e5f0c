package store

import (
	"context"
	"sync"
)

// Memory is an in-process store for dev and tests.
type Memory struct {
	mu   sync.Mutex
	docs map[string]Document
	subs map[string]map[int]func(Document)
	next int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]Document),
		subs: make(map[string]map[int]func(Document)),
	}
}

// Read returns the user's document, reporting absence.
func (m *Memory) Read(_ context.Context, userID string) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[userID]
	return doc, ok, nil
}

// Write merges the partial into the stored document and fans the result
// out to subscribers.
func (m *Memory) Write(_ context.Context, userID string, p Partial) error {
	m.mu.Lock()
	doc, ok := m.docs[userID]
	if !ok {
		doc = NewDocument()
	}
	doc = p.Apply(doc)
	m.docs[userID] = doc
	var fns []func(Document)
	for _, fn := range m.subs[userID] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(doc)
	}
	return nil
}

// Subscribe registers fn for every subsequent write to the user's document.
func (m *Memory) Subscribe(_ context.Context, userID string, fn func(Document)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[int]func(Document))
	}
	id := m.next
	m.next++
	m.subs[userID][id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[userID], id)
	}, nil
}
