package mirror

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// SchemaManager 负责按方言创建镜像表。
type SchemaManager struct {
	store *SQLStore
}

func NewSchemaManager(store *SQLStore) *SchemaManager {
	return &SchemaManager{store: store}
}

// Ensure 幂等地创建表和索引。
func (m *SchemaManager) Ensure(ctx context.Context) error {
	ddl, err := renderSchema(m.store.dialect)
	if err != nil {
		return err
	}
	for _, raw := range strings.Split(ddl, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := m.store.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行 schema 语句失败: %w", err)
		}
	}
	return nil
}

func renderSchema(d dialect) (string, error) {
	tmpl, err := template.ParseFS(schemaFiles, "schema/mirror.sql")
	if err != nil {
		return "", fmt.Errorf("parse schema template failed: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, d.types); err != nil {
		return "", fmt.Errorf("execute schema template failed: %w", err)
	}
	return sb.String(), nil
}
