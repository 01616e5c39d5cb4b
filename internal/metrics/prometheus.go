package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "erp_sync_duration_seconds",
		Help:    "单次完整同步耗时",
		Buckets: prometheus.DefBuckets,
	})

	SyncPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_sync_passes_total",
		Help: "同步执行次数，按结果区分",
	}, []string{"result"})

	EntityOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_sync_entities_total",
		Help: "对账结果计数",
	}, []string{"entity", "outcome"})

	Reauthentications = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "erp_reauthentications_total",
		Help: "收到 401 后重新认证的次数",
	})

	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_upstream_requests_total",
		Help: "调用 ERP 的请求数，按结果区分",
	}, []string{"outcome"})

	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "erp_circuit_breaker_state",
		Help: "熔断状态：0 closed，1 half-open，2 open",
	}, []string{"name"})
)

// MustRegister 注册指标，可在 main 中调用。
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(SyncDuration, SyncPasses, EntityOutcomes, Reauthentications, UpstreamRequests, BreakerState)
}
