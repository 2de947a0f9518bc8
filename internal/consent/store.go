package consent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store is the persisted key-value capability the Authority is built on.
// Watch delivers a notification whenever the backing state changes, so the
// Authority stays testable without a real host environment.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	Watch() <-chan struct{}
	Close() error
}

// storeState is the on-disk shape of the FileStore.
type storeState struct {
	Values map[string]string `json:"values"`
}

// FileStore persists key-value pairs as JSON and watches the file for
// external changes with fsnotify.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]string

	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

// NewFileStore opens (or creates) a store at path and starts watching it.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	fs := &FileStore{
		path:    path,
		values:  make(map[string]string),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create store watcher: %w", err)
	}
	// Watch the directory: editors and atomic writes replace the file node.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch state directory: %w", err)
	}
	fs.watcher = watcher
	go fs.watchLoop()

	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read store: %w", err)
	}
	var state storeState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse store: %w", err)
	}
	if state.Values != nil {
		fs.values = state.Values
	}
	return nil
}

func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(storeState{Values: fs.values}, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return os.Rename(tmp, fs.path)
}

func (fs *FileStore) watchLoop() {
	for {
		select {
		case <-fs.done:
			return
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(fs.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fs.mu.Lock()
			fs.values = make(map[string]string)
			_ = fs.load()
			fs.mu.Unlock()
			select {
			case fs.changes <- struct{}{}:
			default:
			}
		case _, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Get returns the value for key.
func (fs *FileStore) Get(key string) (string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	v, ok := fs.values[key]
	return v, ok
}

// Set stores a value and persists the state.
func (fs *FileStore) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.values[key] = value
	return fs.save()
}

// Delete removes a key and persists the state. Deleting a missing key is a
// no-op.
func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.values[key]; !ok {
		return nil
	}
	delete(fs.values, key)
	return fs.save()
}

// Watch returns the change-notification channel.
func (fs *FileStore) Watch() <-chan struct{} { return fs.changes }

// Close stops the watcher.
func (fs *FileStore) Close() error {
	close(fs.done)
	if fs.watcher != nil {
		return fs.watcher.Close()
	}
	return nil
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]string
	changes chan struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string), changes: make(chan struct{}, 1)}
}

func (ms *MemoryStore) Get(key string) (string, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	v, ok := ms.values[key]
	return v, ok
}

func (ms *MemoryStore) Set(key, value string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.values[key] = value
	return nil
}

func (ms *MemoryStore) Delete(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.values, key)
	return nil
}

func (ms *MemoryStore) Watch() <-chan struct{} { return ms.changes }

func (ms *MemoryStore) Close() error { return nil }
