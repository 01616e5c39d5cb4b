package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/erp"
	"erp2mirror/internal/mirror"
	"erp2mirror/internal/transform"
	json "github.com/goccy/go-json"
)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingSink struct {
	calls   int
	written []domain.Entity
	err     error
}

func (s *recordingSink) Project(_ context.Context, _ domain.EntityType, written []domain.Entity) error {
	s.calls++
	s.written = append(s.written, written...)
	return s.err
}

func openTestMirror(t *testing.T) *mirror.SQLStore {
	t.Helper()
	ctx := context.Background()
	store, err := mirror.Open(ctx, mirror.Config{Driver: "sqlite3", DSN: ":memory:", ConnectAttempts: 1})
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := mirror.NewSchemaManager(store).Ensure(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func newTestReconciler(t *testing.T, entity domain.EntityType, store mirror.Store, sink Sink) *Reconciler {
	t.Helper()
	r, err := NewReconciler(entity, store, sink, nil)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	clock := &fixedClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.Now = clock.Now
	return r
}

func products(t *testing.T, rows ...erp.RemoteRow) []domain.Entity {
	t.Helper()
	tr := transform.NewTransformer(transform.DefaultOptions())
	out := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		p, err := tr.Product(row)
		if err != nil {
			t.Fatalf("transform %v: %v", row, err)
		}
		out = append(out, p)
	}
	return out
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := openTestMirror(t)
	r := newTestReconciler(t, domain.EntityProducts, store, nil)
	ctx := context.Background()

	entities := products(t,
		erp.RemoteRow{"id": 1, "name": map[string]any{"en_US": "Tea", "ar_001": "شاي"}, "list_price": 10.0, "active": true},
		erp.RemoteRow{"id": 2, "name": "Coffee", "list_price": 12.345678, "category_id": []any{3, "Drinks"}, "uom_id": map[string]any{"name": "Units"}},
		erp.RemoteRow{"id": 3, "name": "Water", "active": "0", "tax_rate": 0},
	)

	first, err := r.Reconcile(ctx, entities)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if first.Created != 3 || first.Updated != 0 {
		t.Fatalf("first pass stats = %+v", first)
	}
	before, err := store.LoadAll(ctx, domain.EntityProducts)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	second, err := r.Reconcile(ctx, entities)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Unchanged != 3 || second.Writes() != 0 {
		t.Fatalf("second pass should be a no-op, got %+v", second)
	}
	after, _ := store.LoadAll(ctx, domain.EntityProducts)
	for id, row := range before {
		if !after[id].UpdatedAt.Equal(row.UpdatedAt) || !after[id].LastSyncAt.Equal(row.LastSyncAt) {
			t.Fatalf("row %d bookkeeping changed on no-op pass: %+v -> %+v", id, row, after[id])
		}
	}
}

func TestReconcilePriceFormattingIsUnchanged(t *testing.T) {
	store := openTestMirror(t)
	r := newTestReconciler(t, domain.EntityProducts, store, nil)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, products(t, erp.RemoteRow{"id": 42, "name": "Tea", "list_price": 10.00})); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stats, err := r.Reconcile(ctx, products(t, erp.RemoteRow{"id": json.Number("42"), "name": "Tea", "list_price": json.Number("10.0")}))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.Unchanged != 1 || stats.Writes() != 0 {
		t.Fatalf("expected unchanged=1 and no writes, got %+v", stats)
	}
}

func TestReconcileUpdatesChangedRow(t *testing.T) {
	store := mirror.NewMemoryStore()
	sink := &recordingSink{}
	r := newTestReconciler(t, domain.EntityProducts, store, sink)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, products(t, erp.RemoteRow{"id": 7, "name": "Tea", "list_price": 10})); err != nil {
		t.Fatalf("seed: %v", err)
	}
	created, _ := store.Row(domain.EntityProducts, 7)

	stats, err := r.Reconcile(ctx, products(t, erp.RemoteRow{"id": 7, "name": "Tea", "list_price": 11}))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("expected one update, got %+v", stats)
	}
	row, _ := store.Row(domain.EntityProducts, 7)
	if row.Columns["price"] != float64(11) {
		t.Fatalf("price not overwritten: %v", row.Columns["price"])
	}
	if !row.UpdatedAt.After(created.UpdatedAt) || !row.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("bookkeeping wrong: created=%+v updated=%+v", created, row)
	}
	if sink.calls != 2 || len(sink.written) != 2 {
		t.Fatalf("sink should see the insert and the update, got calls=%d written=%d", sink.calls, len(sink.written))
	}
}

func TestReconcileSkipsInvalidAndDuplicateIDs(t *testing.T) {
	store := mirror.NewMemoryStore()
	r := newTestReconciler(t, domain.EntityProducts, store, nil)

	entities := []domain.Entity{
		domain.Product{ID: 0, Name: "no id"},
		domain.Product{ID: 5, Name: "first"},
		domain.Product{ID: 5, Name: "second"},
	}
	stats, err := r.Reconcile(context.Background(), entities)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.Skipped != 2 || stats.Created != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	row, _ := store.Row(domain.EntityProducts, 5)
	if row.Columns["name"] != "first" {
		t.Fatalf("first occurrence should win, got %v", row.Columns["name"])
	}
}

func TestReconcileIsolatesWriteFailures(t *testing.T) {
	store := mirror.NewMemoryStore()
	store.FailOn = map[int64]error{2: errors.New("constraint violation")}
	sink := &recordingSink{err: errors.New("graph offline")}
	r := newTestReconciler(t, domain.EntityProducts, store, sink)

	stats, err := r.Reconcile(context.Background(), []domain.Entity{
		domain.Product{ID: 1, Name: "a"},
		domain.Product{ID: 2, Name: "b"},
		domain.Product{ID: 3, Name: "c"},
	})
	if err != nil {
		t.Fatalf("write failures must not fail the pass: %v", err)
	}
	if stats.Created != 2 || stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(sink.written) != 2 {
		t.Fatalf("sink should only receive written rows, got %d", len(sink.written))
	}
}

func TestFreshRowComparesUnchangedForLoyalty(t *testing.T) {
	store := openTestMirror(t)
	r := newTestReconciler(t, domain.EntityLoyalty, store, nil)
	ctx := context.Background()
	program := domain.LoyaltyProgram{
		ID: 501, Name: "Buy 2 get 1", Type: transform.TypeBOGO, Active: true,
		BuyQuantity: 2, FreeQuantity: 1, DiscountPercent: 12.5,
		TriggerProductIDs: "7,9", RewardProductIDs: "7,9", DateFrom: "2024-01-01",
	}
	if _, err := r.Reconcile(ctx, []domain.Entity{program}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stats, err := r.Reconcile(ctx, []domain.Entity{program})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.Unchanged != 1 {
		t.Fatalf("fresh row should compare unchanged, got %+v", stats)
	}
}
