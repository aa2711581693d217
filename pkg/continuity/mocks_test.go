package continuity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
)

// memFS は remoteio の InputReader / OutputWriter を兼ねるインメモリ実装なのだ
type memFS struct {
	mu      sync.Mutex
	files   map[string][]byte
	types   map[string]string
	openErr error
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memFS) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	data, ok := m.files[uri]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", uri, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memFS) List(ctx context.Context, uri string, fn func(string) error) error {
	m.mu.Lock()
	var keys []string
	for k := range m.files {
		if strings.HasPrefix(k, uri) {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()
	for _, k := range keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (m *memFS) Write(ctx context.Context, path string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
	m.types[path] = contentType
	return nil
}

// failingWriter は常に書き込みに失敗するのだ
type failingWriter struct{}

func (failingWriter) Write(ctx context.Context, path string, r io.Reader, contentType string) error {
	return errors.New("disk full")
}

// findFile はファイル名の末尾一致でパスを探すのだ
func (m *memFS) findFile(suffix string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.files {
		if strings.HasSuffix(k, suffix) {
			return k, true
		}
	}
	return "", false
}
