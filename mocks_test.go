package session_test

import (
	"context"
	"sync"

	session "github.com/goliatone/go-session"
)

// fakeProvider implements session.IdentityProvider with scriptable behavior.
type fakeProvider struct {
	mu           sync.Mutex
	current      *session.SessionObject
	currentErr   error
	signOutErr   error
	signOutCalls int
	handler      func(session.AuthEvent)
}

func (f *fakeProvider) CurrentSession(ctx context.Context) (*session.SessionObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.currentErr
}

func (f *fakeProvider) Subscribe(handler func(session.AuthEvent)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return func() {}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeProvider) emit(evt session.AuthEvent) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(evt)
	}
}

func (f *fakeProvider) signOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// queueBackend pops one scripted response per QueryProfile call, repeating
// the last one once the script runs out.
type queueBackend struct {
	mu        sync.Mutex
	calls     int
	responses []func() (*session.Profile, error)
}

func (b *queueBackend) QueryProfile(ctx context.Context, userID string) (*session.Profile, error) {
	b.mu.Lock()
	idx := b.calls
	b.calls++
	if idx >= len(b.responses) {
		idx = len(b.responses) - 1
	}
	response := b.responses[idx]
	b.mu.Unlock()
	return response()
}

func (b *queueBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// blockingBackend parks every query until release is closed.
type blockingBackend struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	profile *session.Profile
	err     error
}

func (b *blockingBackend) QueryProfile(ctx context.Context, userID string) (*session.Profile, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	return b.profile, b.err
}

func (b *blockingBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// memStore is an in-memory KeyValueStore with injectable failures.
type memStore struct {
	mu        sync.Mutex
	data      map[string]string
	setErr    error
	removeErr error
	keysErr   error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	if !ok {
		return "", session.ErrKeyNotFound
	}
	return value, nil
}

func (s *memStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *memStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.data, key)
	return nil
}

func (s *memStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *memStore) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]string, len(s.data))
	for k, v := range s.data {
		copied[k] = v
	}
	return copied
}

// capturingSink records activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt session.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) byType(eventType session.ActivityEventType) []session.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []session.ActivityEvent
	for _, evt := range c.events {
		if evt.EventType == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

// noopLogger keeps test output quiet.
type noopLogger struct{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}
