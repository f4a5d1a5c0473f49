package natsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
)

// FakeKeyValue is an in-memory jetstream.KeyValue covering the calls the property backend makes.
type FakeKeyValue struct {
	jetstream.KeyValue

	mu       sync.Mutex
	trace    []string
	entries  map[string]*fakeEntry
	revision uint64

	// Conflicts makes the next N updates fail as if another writer got there first.
	Conflicts int
	// GetErr is returned by Get when set.
	GetErr error
}

func NewFakeKeyValue() *FakeKeyValue {
	return &FakeKeyValue{entries: make(map[string]*fakeEntry)}
}

func (f *FakeKeyValue) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeKeyValue) StoredKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.entries {
		keys = append(keys, k)
	}
	return keys
}

func (f *FakeKeyValue) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "get")
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	e, ok := f.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *FakeKeyValue) Create(_ context.Context, key string, value []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "create")
	if _, ok := f.entries[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return f.putLocked(key, value), nil
}

func (f *FakeKeyValue) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "update")
	e, ok := f.entries[key]
	if !ok {
		return 0, jetstream.ErrKeyNotFound
	}
	if f.Conflicts > 0 {
		f.Conflicts--
		f.revision++
		e.revision = f.revision
		return 0, jetstream.ErrKeyExists
	}
	if e.revision != revision {
		return 0, jetstream.ErrKeyExists
	}
	return f.putLocked(key, value), nil
}

func (f *FakeKeyValue) Purge(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "purge")
	delete(f.entries, key)
	return nil
}

func (f *FakeKeyValue) putLocked(key string, value []byte) uint64 {
	f.revision++
	f.entries[key] = &fakeEntry{key: key, value: append([]byte(nil), value...), revision: f.revision}
	return f.revision
}

type fakeEntry struct {
	jetstream.KeyValueEntry
	key      string
	value    []byte
	revision uint64
}

func (e *fakeEntry) Key() string      { return e.key }
func (e *fakeEntry) Value() []byte    { return e.value }
func (e *fakeEntry) Revision() uint64 { return e.revision }

// loopback connects clients straight to a Server without a NATS connection.
type loopback struct {
	server *Server

	mu   sync.Mutex
	subs map[string]func([]byte)
	down bool
}

func newLoopback() *loopback {
	return &loopback{subs: make(map[string]func([]byte))}
}

func (l *loopback) SetDown(down bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.down = down
}

func (l *loopback) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	l.mu.Lock()
	down := l.down
	l.mu.Unlock()
	if down {
		return nil, errors.New("nats: no responders available for request")
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	op := subject[strings.LastIndexByte(subject, '.')+1:]
	return json.Marshal(l.server.Serve(ctx, op, req))
}

func (l *loopback) Subscribe(subject string, fn func([]byte)) (func() error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[subject] = fn
	return func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, subject)
		return nil
	}, nil
}

func (l *loopback) Publish(subject string, data []byte) error {
	l.mu.Lock()
	fn := l.subs[subject]
	l.mu.Unlock()
	if fn != nil {
		fn(data)
	}
	return nil
}

var (
	_ Transport      = (*loopback)(nil)
	_ EventPublisher = (*loopback)(nil)
)
