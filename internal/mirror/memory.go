package mirror

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"erp2mirror/internal/domain"
)

// MemoryStore 是进程内镜像实现，driver=memory 时使用，也供测试统计写入次数。
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[domain.EntityType]map[int64]domain.MirrorRow
	writes int

	// FailOn 中的 id 写入时返回错误，用于模拟单行失败。
	FailOn map[int64]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[domain.EntityType]map[int64]domain.MirrorRow)}
}

func (s *MemoryStore) LoadAll(_ context.Context, entity domain.EntityType) (map[int64]domain.MirrorRow, error) {
	if _, err := tableFor(entity); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]domain.MirrorRow, len(s.rows[entity]))
	for id, row := range s.rows[entity] {
		out[id] = cloneRow(row)
	}
	return out, nil
}

func (s *MemoryStore) Insert(_ context.Context, entity domain.EntityType, id int64, cols map[string]any, now time.Time) error {
	if err := s.check(entity, id, "insert"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.rows[entity]
	if table == nil {
		table = make(map[int64]domain.MirrorRow)
		s.rows[entity] = table
	}
	if _, exists := table[id]; exists {
		return &PersistenceError{Entity: entity, ID: id, Op: "insert", Err: errDuplicateKey}
	}
	table[id] = domain.MirrorRow{ID: id, Columns: copyCols(cols), CreatedAt: now, UpdatedAt: now, LastSyncAt: now}
	s.writes++
	return nil
}

func (s *MemoryStore) Update(_ context.Context, entity domain.EntityType, id int64, cols map[string]any, now time.Time) error {
	if err := s.check(entity, id, "update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[entity][id]
	if !ok {
		return &PersistenceError{Entity: entity, ID: id, Op: "update", Err: sql.ErrNoRows}
	}
	row.Columns = copyCols(cols)
	row.UpdatedAt = now
	row.LastSyncAt = now
	s.rows[entity][id] = row
	s.writes++
	return nil
}

// Writes 返回累计写入次数。
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Row 读取单行，测试断言使用。
func (s *MemoryStore) Row(entity domain.EntityType, id int64) (domain.MirrorRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[entity][id]
	return cloneRow(row), ok
}

func (s *MemoryStore) check(entity domain.EntityType, id int64, op string) error {
	if _, err := tableFor(entity); err != nil {
		return &PersistenceError{Entity: entity, ID: id, Op: op, Err: err}
	}
	if err, ok := s.FailOn[id]; ok {
		return &PersistenceError{Entity: entity, ID: id, Op: op, Err: err}
	}
	return nil
}

type duplicateKeyError struct{}

func (duplicateKeyError) Error() string { return "duplicate primary key" }

var errDuplicateKey error = duplicateKeyError{}

func copyCols(cols map[string]any) map[string]any {
	out := make(map[string]any, len(cols))
	for k, v := range cols {
		out[k] = v
	}
	return out
}

func cloneRow(row domain.MirrorRow) domain.MirrorRow {
	if row.Columns != nil {
		row.Columns = copyCols(row.Columns)
	}
	return row
}
