package audit

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// MemoryStorage keeps events in memory. Intended for tests and local development.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) StoreBatch(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of everything stored so far.
func (s *MemoryStorage) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Len returns the number of stored events.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// LogStorage writes events as structured log records.
type LogStorage struct {
	logger *slog.Logger
}

// NewLogStorage creates a storage that logs every event at info level under the "audit" group.
func NewLogStorage(l *slog.Logger) *LogStorage {
	if l == nil {
		l = slog.Default()
	}
	return &LogStorage{logger: l}
}

func (s *LogStorage) StoreBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "tenant access",
			slog.Group("audit",
				slog.String("id", e.ID),
				slog.String("organization_code", e.OrganizationCode),
				slog.String("source", e.Source),
				slog.String("user_id", e.UserID),
				slog.String("decision", e.Decision),
				slog.String("reason", e.Reason),
				slog.String("bypass", e.Bypass),
				slog.String("phase", e.Phase),
				slog.String("method", e.Method),
				slog.String("path", e.Path),
				slog.String("ip", e.IP),
				slog.String("request_id", e.RequestID),
				slog.Duration("elapsed", e.Elapsed),
				slog.Time("created_at", e.CreatedAt),
			),
		)
	}
	return nil
}

// MultiStorage fans a batch out to several storages and joins their errors.
type MultiStorage []Storage

func (m MultiStorage) StoreBatch(ctx context.Context, events []Event) error {
	var errs []error
	for _, s := range m {
		if err := s.StoreBatch(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
