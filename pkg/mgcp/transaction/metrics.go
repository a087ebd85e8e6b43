package transaction

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics собирает Prometheus метрики медиатора.
// nil-приемник безопасен: сбор метрик выключен.
type Metrics struct {
	transactionsTotal   *prometheus.CounterVec
	responsesTotal      *prometheus.CounterVec
	duplicatesTotal     prometheus.Counter
	timeoutsTotal       prometheus.Counter
	orphanResponses     prometheus.Counter
	openTransactions    prometheus.Gauge
	transactionDuration prometheus.Histogram
}

// NewMetrics регистрирует метрики в указанном Registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mgcp",
			Subsystem: "mediator",
			Name:      "transactions_total",
			Help:      "Число зарегистрированных транзакций по командам",
		}, []string{"verb"}),
		responsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mgcp",
			Subsystem: "mediator",
			Name:      "responses_total",
			Help:      "Число отправленных ответов по классам кодов",
		}, []string{"class"}),
		duplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mgcp",
			Subsystem: "mediator",
			Name:      "duplicate_requests_total",
			Help:      "Число подавленных дубликатов запросов",
		}),
		timeoutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mgcp",
			Subsystem: "mediator",
			Name:      "transaction_timeouts_total",
			Help:      "Число транзакций, завершенных по тайм-ауту",
		}),
		orphanResponses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mgcp",
			Subsystem: "mediator",
			Name:      "orphan_responses_total",
			Help:      "Число ответов без соответствующей транзакции",
		}),
		openTransactions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mgcp",
			Subsystem: "mediator",
			Name:      "open_transactions",
			Help:      "Текущее число открытых транзакций",
		}),
		transactionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mgcp",
			Subsystem: "mediator",
			Name:      "transaction_duration_seconds",
			Help:      "Длительность транзакций от регистрации до завершения",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
}

func (m *Metrics) transactionRegistered(verb string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(verb).Inc()
	m.openTransactions.Inc()
}

func (m *Metrics) transactionCompleted(code int, startedAt time.Time) {
	if m == nil {
		return
	}
	m.openTransactions.Dec()
	m.transactionDuration.Observe(time.Since(startedAt).Seconds())
	m.responsesTotal.WithLabelValues(strconv.Itoa(code / 100)).Inc()
}

func (m *Metrics) duplicateSuppressed() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}

func (m *Metrics) transactionTimedOut() {
	if m == nil {
		return
	}
	m.timeoutsTotal.Inc()
}

func (m *Metrics) orphanResponseDropped() {
	if m == nil {
		return
	}
	m.orphanResponses.Inc()
}
