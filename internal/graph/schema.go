package graph

import (
	"context"
	"fmt"

	"erp2mirror/internal/cypher"
)

// SchemaManager 负责初始化约束和索引。
type SchemaManager struct {
	client Writer
}

func NewSchemaManager(client Writer) *SchemaManager {
	return &SchemaManager{client: client}
}

func (m *SchemaManager) Ensure(ctx context.Context) error {
	statements, err := cypher.Statements("init_schema.cql")
	if err != nil {
		return err
	}
	for _, query := range statements {
		if err := m.client.RunRaw(ctx, query, nil); err != nil {
			return fmt.Errorf("执行 schema 语句失败: %w", err)
		}
	}
	return nil
}
