package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/util"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store 是镜像库的读写接口，对账器是唯一的写入方。
type Store interface {
	// LoadAll 一次性读取整张表，按主键建索引。
	LoadAll(ctx context.Context, entity domain.EntityType) (map[int64]domain.MirrorRow, error)
	Insert(ctx context.Context, entity domain.EntityType, id int64, cols map[string]any, now time.Time) error
	Update(ctx context.Context, entity domain.EntityType, id int64, cols map[string]any, now time.Time) error
}

// PersistenceError 单行写入失败，只影响出错的实体。
type PersistenceError struct {
	Entity domain.EntityType
	ID     int64
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s id=%d 失败: %v", e.Entity, e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type tableDef struct {
	name    string
	columns []string
}

var tables = map[domain.EntityType]tableDef{
	domain.EntityProducts: {
		name: "products",
		columns: []string{
			"product_id", "name", "barcode", "sku", "price", "tax_rate", "description",
			"category", "category_id", "uom_name", "volume", "weight", "active",
		},
	},
	domain.EntityLoyalty: {
		name: "loyalty_programs",
		columns: []string{
			"name", "program_type", "active", "buy_quantity", "free_quantity", "discount_percent",
			"discount_code", "min_quantity", "min_amount", "trigger_product_ids", "reward_product_ids",
			"date_from", "date_to",
		},
	},
}

func tableFor(entity domain.EntityType) (tableDef, error) {
	def, ok := tables[entity]
	if !ok {
		return tableDef{}, fmt.Errorf("未知实体类型 %q", entity)
	}
	return def, nil
}

// Columns 返回实体类型在镜像表中的业务列。
func Columns(entity domain.EntityType) []string {
	return append([]string(nil), tables[entity].columns...)
}

type columnTypes struct {
	Decimal   string
	Bool      string
	True      string
	Timestamp string
}

type dialect struct {
	driver string
	types  columnTypes
	// numbered 为 true 时使用 $1 风格占位符。
	numbered bool
}

func (d dialect) placeholder(i int) string {
	if d.numbered {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

var dialects = map[string]dialect{
	"postgres": {
		driver:   "postgres",
		types:    columnTypes{Decimal: "NUMERIC(18,6)", Bool: "BOOLEAN", True: "TRUE", Timestamp: "TIMESTAMPTZ"},
		numbered: true,
	},
	"sqlite3": {
		driver: "sqlite3",
		types:  columnTypes{Decimal: "REAL", Bool: "INTEGER", True: "1", Timestamp: "TIMESTAMP"},
	},
}

// Config 控制镜像库连接参数。
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// SQLStore 基于 database/sql 的镜像库实现，支持 postgres 与 sqlite3。
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open 打开连接并带退避重试地校验连通性。
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("不支持的镜像库驱动 %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("mirror dsn 不能为空")
	}
	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("打开镜像库失败: %w", err)
	}
	if d.driver == "sqlite3" {
		// SQLite 只有一个写者，内存库也依赖单连接
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	if err := util.Retry(ctx, cfg.ConnectAttempts, backoff, func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("镜像库无法连通: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// Close 关闭连接。
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping 校验连通性。
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) LoadAll(ctx context.Context, entity domain.EntityType) (map[int64]domain.MirrorRow, error) {
	def, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT id, %s, created_at, updated_at, last_sync_at FROM %s",
		strings.Join(def.columns, ", "), def.name)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("读取镜像表 %s 失败: %w", def.name, err)
	}
	defer rows.Close()

	out := make(map[int64]domain.MirrorRow)
	for rows.Next() {
		var (
			id                       int64
			created, updated, synced sql.NullTime
		)
		values := make([]any, len(def.columns))
		dest := make([]any, 0, len(def.columns)+4)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		dest = append(dest, &created, &updated, &synced)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("扫描镜像表 %s 失败: %w", def.name, err)
		}
		cols := make(map[string]any, len(def.columns))
		for i, name := range def.columns {
			cols[name] = values[i]
		}
		out[id] = domain.MirrorRow{
			ID:         id,
			Columns:    cols,
			CreatedAt:  created.Time,
			UpdatedAt:  updated.Time,
			LastSyncAt: synced.Time,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历镜像表 %s 失败: %w", def.name, err)
	}
	return out, nil
}

func (s *SQLStore) Insert(ctx context.Context, entity domain.EntityType, id int64, cols map[string]any, now time.Time) error {
	def, err := tableFor(entity)
	if err != nil {
		return &PersistenceError{Entity: entity, ID: id, Op: "insert", Err: err}
	}
	names := append([]string{"id"}, def.columns...)
	names = append(names, "created_at", "updated_at", "last_sync_at")
	args := make([]any, 0, len(names))
	args = append(args, id)
	for _, c := range def.columns {
		args = append(args, cols[c])
	}
	ts := now.UTC()
	args = append(args, ts, ts, ts)

	holders := make([]string, len(names))
	for i := range names {
		holders[i] = s.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", def.name, strings.Join(names, ", "), strings.Join(holders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &PersistenceError{Entity: entity, ID: id, Op: "insert", Err: err}
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, entity domain.EntityType, id int64, cols map[string]any, now time.Time) error {
	def, err := tableFor(entity)
	if err != nil {
		return &PersistenceError{Entity: entity, ID: id, Op: "update", Err: err}
	}
	sets := make([]string, 0, len(def.columns)+2)
	args := make([]any, 0, len(def.columns)+3)
	for i, c := range def.columns {
		sets = append(sets, fmt.Sprintf("%s = %s", c, s.dialect.placeholder(i+1)))
		args = append(args, cols[c])
	}
	n := len(def.columns)
	sets = append(sets,
		fmt.Sprintf("updated_at = %s", s.dialect.placeholder(n+1)),
		fmt.Sprintf("last_sync_at = %s", s.dialect.placeholder(n+2)))
	ts := now.UTC()
	args = append(args, ts, ts, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", def.name, strings.Join(sets, ", "), s.dialect.placeholder(n+3))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &PersistenceError{Entity: entity, ID: id, Op: "update", Err: err}
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return &PersistenceError{Entity: entity, ID: id, Op: "update", Err: sql.ErrNoRows}
	}
	return nil
}
