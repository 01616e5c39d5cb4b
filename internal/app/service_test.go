package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/erp"
	"erp2mirror/internal/metrics"
	"erp2mirror/internal/mirror"
	"erp2mirror/internal/transform"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type blockingPass struct {
	entity  domain.EntityType
	started chan struct{}
	release chan struct{}
}

func (p *blockingPass) Entity() domain.EntityType { return p.entity }

func (p *blockingPass) Run(ctx context.Context) (domain.SyncStats, error) {
	close(p.started)
	<-p.release
	stats := domain.NewSyncStats(p.entity, time.Now())
	stats.Created = 1
	return stats, nil
}

type fakeSchedule struct {
	enabled bool
	spec    string
}

func (f *fakeSchedule) Enabled() bool      { return f.enabled }
func (f *fakeSchedule) SetEnabled(on bool) { f.enabled = on }
func (f *fakeSchedule) Spec() string       { return f.spec }

func buildPasses(t *testing.T, client erp.Fetcher, store mirror.Store) []Pass {
	t.Helper()
	tr := transform.NewTransformer(transform.DefaultOptions())
	productRec := newTestReconciler(t, domain.EntityProducts, store, nil)
	loyaltyRec := newTestReconciler(t, domain.EntityLoyalty, store, nil)
	return []Pass{
		&ProductPass{ERP: client, Endpoint: "/api/products/all", Transformer: tr, Reconciler: productRec},
		&LoyaltyPass{ERP: client, Endpoint: "/api/loyalty/all", Grouper: transform.NewLoyaltyGrouper(nil), Transformer: tr, Reconciler: loyaltyRec},
	}
}

func TestTriggerFullPassRunsAllEntities(t *testing.T) {
	client := &erp.StaticClient{Rows: map[string][]erp.RemoteRow{
		"/api/products/all": {
			{"id": 1, "name": "Tea", "list_price": 5},
			{"name": "no id"},
		},
		"/api/loyalty/all": {
			{"program_id": 501, "program_name": "Buy 2", "eligible_product_id": 9, "rule_min_qty": 2},
			{"program_id": 501, "program_name": "Buy 2", "eligible_product_id": 7, "rule_min_qty": 2},
		},
	}}
	store := mirror.NewMemoryStore()
	svc := NewService(buildPasses(t, client, store), nil, nil)

	result := svc.TriggerFullPass(context.Background(), "manual")
	if !result.Success || result.RunID == "" {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Entities) != 2 || result.Entities[0].Entity != domain.EntityProducts {
		t.Fatalf("entities should run products then loyalty: %+v", result.Entities)
	}
	ps, _ := result.Stats(domain.EntityProducts)
	if ps.Created != 1 || ps.Skipped != 1 || ps.Fetched != 2 {
		t.Fatalf("product stats = %+v", ps)
	}
	ls, _ := result.Stats(domain.EntityLoyalty)
	if ls.Created != 1 {
		t.Fatalf("loyalty stats = %+v", ls)
	}
	row, ok := store.Row(domain.EntityLoyalty, 501)
	if !ok || row.Columns["trigger_product_ids"] != "7,9" {
		t.Fatalf("program 501 members = %v", row.Columns["trigger_product_ids"])
	}
	if row.Columns["buy_quantity"] != int64(2) {
		t.Fatalf("buy_quantity = %v", row.Columns["buy_quantity"])
	}

	st := svc.Status()
	if st.Running || st.LastResult == nil || st.LastResult.RunID != result.RunID {
		t.Fatalf("status = %+v", st)
	}
}

func TestGroupMembersIndependentOfRowOrder(t *testing.T) {
	for _, rows := range [][]erp.RemoteRow{
		{{"program_id": 501, "eligible_product_id": 7}, {"program_id": 501, "eligible_product_id": 9}},
		{{"program_id": 501, "eligible_product_id": 9}, {"program_id": 501, "eligible_product_id": 7}},
	} {
		store := mirror.NewMemoryStore()
		client := &erp.StaticClient{Rows: map[string][]erp.RemoteRow{"/api/loyalty/all": rows}}
		svc := NewService(buildPasses(t, client, store), nil, nil)
		if _, err := svc.TriggerEntityPass(context.Background(), domain.EntityLoyalty); err != nil {
			t.Fatalf("entity pass: %v", err)
		}
		row, _ := store.Row(domain.EntityLoyalty, 501)
		if row.Columns["trigger_product_ids"] != "7,9" {
			t.Fatalf("trigger_product_ids = %v", row.Columns["trigger_product_ids"])
		}
	}
}

func TestFetchFailureDoesNotAbortPass(t *testing.T) {
	client := &erp.StaticClient{
		Rows: map[string][]erp.RemoteRow{
			"/api/loyalty/all": {{"program_id": 1, "eligible_product_id": 3}},
		},
		Errors: map[string]error{
			"/api/products/all": &erp.NetworkError{Endpoint: "/api/products/all", Err: context.DeadlineExceeded},
		},
	}
	store := mirror.NewMemoryStore()
	svc := NewService(buildPasses(t, client, store), nil, nil)

	result := svc.TriggerFullPass(context.Background(), "manual")
	if result.Success {
		t.Fatalf("pass with a failed fetch must not report success")
	}
	ps, _ := result.Stats(domain.EntityProducts)
	if ps.Success || ps.Error == "" {
		t.Fatalf("product stats should carry the failure: %+v", ps)
	}
	ls, _ := result.Stats(domain.EntityLoyalty)
	if !ls.Success || ls.Created != 1 {
		t.Fatalf("loyalty should still run: %+v", ls)
	}

	// 失败后仍可再次触发
	client.Errors = nil
	if again := svc.TriggerFullPass(context.Background(), "manual"); !again.Success {
		t.Fatalf("second pass should succeed: %+v", again)
	}
}

func TestTriggerIsSingleFlight(t *testing.T) {
	pass := &blockingPass{entity: domain.EntityProducts, started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService([]Pass{pass}, nil, nil)

	done := make(chan domain.SyncResult)
	go func() { done <- svc.TriggerFullPass(context.Background(), "cron") }()
	<-pass.started

	if !svc.Status().Running {
		t.Fatalf("status should report running")
	}
	rejected := svc.TriggerFullPass(context.Background(), "manual")
	if rejected.Success || rejected.Message != ErrSyncInProgress.Error() {
		t.Fatalf("concurrent trigger should be rejected: %+v", rejected)
	}
	if _, err := svc.TriggerEntityPass(context.Background(), domain.EntityProducts); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("entity trigger should be rejected, got %v", err)
	}
	if svc.Status().LastResult != nil {
		t.Fatalf("rejected trigger must not record a result")
	}

	close(pass.release)
	first := <-done
	if !first.Success || first.Entities[0].Created != 1 {
		t.Fatalf("in-flight pass result affected: %+v", first)
	}
	if svc.Status().Running {
		t.Fatalf("should be idle after the pass")
	}
}

func TestTriggerEntityPassUnknownEntity(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if _, err := svc.TriggerEntityPass(context.Background(), domain.EntityLoyalty); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestEntityPassUpdatesStatsOnly(t *testing.T) {
	client := &erp.StaticClient{Rows: map[string][]erp.RemoteRow{"/api/products/all": {{"id": 1, "name": "Tea"}}}}
	svc := NewService(buildPasses(t, client, mirror.NewMemoryStore()), nil, nil)

	stats, err := svc.TriggerEntityPass(context.Background(), domain.EntityProducts)
	if err != nil || stats.Created != 1 {
		t.Fatalf("stats=%+v err=%v", stats, err)
	}
	got, ok := svc.Stats(domain.EntityProducts)
	if !ok || got.Created != 1 {
		t.Fatalf("stats not recorded: %+v", got)
	}
	if svc.Status().LastResult != nil {
		t.Fatalf("entity pass must not replace the last full result")
	}
}

func TestScheduleToggle(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if err := svc.SetScheduleEnabled(true); err == nil {
		t.Fatalf("expected error without a schedule")
	}
	sched := &fakeSchedule{spec: "0 */5 * * * *"}
	svc.AttachSchedule(sched)
	if err := svc.SetScheduleEnabled(true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	st := svc.Status()
	if !st.ScheduleEnabled || st.Schedule != "0 */5 * * * *" {
		t.Fatalf("status = %+v", st)
	}
}

func TestValidateRunsProbes(t *testing.T) {
	var ran []string
	svc := NewService(nil, []Probe{
		{Name: "mirror", Check: func(context.Context) error { ran = append(ran, "mirror"); return nil }},
		{Name: "erp", Check: func(context.Context) error { ran = append(ran, "erp"); return errors.New("401") }},
	}, nil)
	if err := svc.Validate(context.Background()); err == nil {
		t.Fatalf("expected probe failure")
	}
	if len(ran) != 2 {
		t.Fatalf("probes ran = %v", ran)
	}
}

type panickingPass struct{ entity domain.EntityType }

func (p panickingPass) Entity() domain.EntityType { return p.entity }

func (p panickingPass) Run(context.Context) (domain.SyncStats, error) {
	panic("nil map write")
}

func TestPanickingPassIsRecordedAsFailure(t *testing.T) {
	client := &erp.StaticClient{Rows: map[string][]erp.RemoteRow{
		"/api/loyalty/all": {{"program_id": 1, "eligible_product_id": 3}},
	}}
	passes := buildPasses(t, client, mirror.NewMemoryStore())
	svc := NewService([]Pass{panickingPass{entity: domain.EntityProducts}, passes[1]}, nil, nil)

	result := svc.TriggerFullPass(context.Background(), "manual")
	if result.Success || len(result.Entities) != 2 {
		t.Fatalf("result = %+v", result)
	}
	ps, _ := result.Stats(domain.EntityProducts)
	if ps.Success || ps.Error == "" {
		t.Fatalf("panicking entity should be failed: %+v", ps)
	}
	ls, _ := result.Stats(domain.EntityLoyalty)
	if !ls.Success || ls.Created != 1 {
		t.Fatalf("later entity should still run: %+v", ls)
	}
	if svc.Status().Running {
		t.Fatalf("guard not released after panic")
	}
}

func TestOutcomeMetricsUseFinalStats(t *testing.T) {
	client := &erp.StaticClient{Rows: map[string][]erp.RemoteRow{
		"/api/loyalty/all": {
			{"program_id": 1, "type": "BOGO", "eligible_product_id": 3},
			{"program_id": 2, "type": "COUPON", "eligible_product_id": 4},
			{"name": "no program"},
		},
	}}
	passes := buildPasses(t, client, mirror.NewMemoryStore())
	passes[1].(*LoyaltyPass).AllowedTypes = []string{"BOGO"}
	svc := NewService(passes, nil, nil)

	filtered := metrics.EntityOutcomes.WithLabelValues(string(domain.EntityLoyalty), "filtered")
	skipped := metrics.EntityOutcomes.WithLabelValues(string(domain.EntityLoyalty), "skipped")
	beforeFiltered, beforeSkipped := testutil.ToFloat64(filtered), testutil.ToFloat64(skipped)

	if _, err := svc.TriggerEntityPass(context.Background(), domain.EntityLoyalty); err != nil {
		t.Fatalf("entity pass: %v", err)
	}
	if got := testutil.ToFloat64(filtered) - beforeFiltered; got != 1 {
		t.Fatalf("filtered metric delta = %v", got)
	}
	if got := testutil.ToFloat64(skipped) - beforeSkipped; got != 1 {
		t.Fatalf("skipped metric delta = %v", got)
	}
}
