package continuity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shouni/panorama-kit/pkg/domain"
)

// ErrNotFound は、指定日の継続レコードが存在しないことを表します。
var ErrNotFound = errors.New("continuity record not found")

// Store は日付ごとの継続レコード（最終シードと最終説明文）を保存・取得します。
type Store interface {
	Get(ctx context.Context, date string) (*domain.ContinuityRecord, error)
	Put(ctx context.Context, record domain.ContinuityRecord) error
}

// MemoryStore はプロセス内で完結する Store です。テストやドライランで使います。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.ContinuityRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.ContinuityRecord)}
}

func (s *MemoryStore) Get(ctx context.Context, date string) (*domain.ContinuityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[date]
	if !ok {
		return nil, fmt.Errorf("%s: %w", date, ErrNotFound)
	}
	rec.FinalSeed = append([]byte(nil), rec.FinalSeed...)
	return &rec, nil
}

func (s *MemoryStore) Put(ctx context.Context, record domain.ContinuityRecord) error {
	if record.Date == "" {
		return fmt.Errorf("record date is required")
	}
	record.FinalSeed = append([]byte(nil), record.FinalSeed...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Date] = record
	return nil
}
