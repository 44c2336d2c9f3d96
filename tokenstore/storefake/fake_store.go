package storefake

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-github-auth/tokenstore"
)

// Op names an operation recorded by FakeStore.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// Call is one recorded operation.
type Call struct {
	Op  Op
	Key string
}

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store with failure injection.
type FakeStore struct {
	mu     sync.Mutex
	values map[string]string
	fail   map[Op]map[string]error
	calls  []Call

	Writes  int
	Deletes int
}

// NewFakeStore returns an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
		fail:   make(map[Op]map[string]error),
	}
}

// Seed sets a value without recording a write.
func (f *FakeStore) Seed(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

// FailOn makes op on key return err. An empty key fails the op for every key.
func (f *FakeStore) FailOn(op Op, key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[op] == nil {
		f.fail[op] = make(map[string]error)
	}
	f.fail[op][key] = err
}

// ClearFailures removes every injected failure.
func (f *FakeStore) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = make(map[Op]map[string]error)
}

// Value returns the stored value and whether it exists.
func (f *FakeStore) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Calls returns a copy of the recorded operations.
func (f *FakeStore) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpGet, Key: key})
	if err := f.failure(OpGet, key); err != nil {
		return "", err
	}
	v, ok := f.values[key]
	if !ok {
		return "", tokenstore.ErrNotFound
	}
	return v, nil
}

func (f *FakeStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpSet, Key: key})
	if err := f.failure(OpSet, key); err != nil {
		return err
	}
	f.values[key] = value
	f.Writes++
	return nil
}

func (f *FakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpDelete, Key: key})
	if err := f.failure(OpDelete, key); err != nil {
		return err
	}
	delete(f.values, key)
	f.Deletes++
	return nil
}

func (f *FakeStore) failure(op Op, key string) error {
	byKey := f.fail[op]
	if byKey == nil {
		return nil
	}
	if err, ok := byKey[key]; ok {
		return fmt.Errorf("[FakeStore.%s] %s: %w", op, key, err)
	}
	if err, ok := byKey[""]; ok {
		return fmt.Errorf("[FakeStore.%s] %s: %w", op, key, err)
	}
	return nil
}
