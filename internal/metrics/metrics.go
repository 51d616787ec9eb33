package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics собирает Prometheus-коллекторы движка бронирования.
// Все методы безопасны для nil-получателя, чтобы сервисы можно было собирать без метрик.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	holds           *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	sweepReclaimed  prometheus.Counter
	sweepFailures   prometheus.Counter
	casConflicts    prometheus.Counter
	slotsProjected  prometheus.Counter
	slotsPurged     prometheus.Counter
	refundsRelayed  prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	holds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_holds_total",
		Help: "Hold operations by operation and result",
	}, []string{"operation", "result"})

	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_confirmations_total",
		Help: "Confirm attempts by result",
	}, []string{"result"})

	cancellations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_cancellations_total",
		Help: "Session cancellations by initiator and refund eligibility",
	}, []string{"cancelled_by", "refund_eligible"})

	sweepReclaimed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_sweeper_reclaimed_total",
		Help: "Expired holds returned to the pool by the sweeper",
	})

	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_sweeper_failures_total",
		Help: "Per-slot sweeper failures",
	})

	casConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_store_conflicts_total",
		Help: "Compare-and-swap attempts that lost a race",
	})

	slotsProjected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_slots_projected_total",
		Help: "Slots created from weekly templates",
	})

	slotsPurged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_slots_purged_total",
		Help: "Past slots deleted by the retention sweep",
	})

	refundsRelayed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_refunds_relayed_total",
		Help: "Refund instructions handed to the payments queue",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(holds, confirmations, cancellations, sweepReclaimed, sweepFailures,
		casConflicts, slotsProjected, slotsPurged, refundsRelayed, requestDuration, goroutines)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		holds:           holds,
		confirmations:   confirmations,
		cancellations:   cancellations,
		sweepReclaimed:  sweepReclaimed,
		sweepFailures:   sweepFailures,
		casConflicts:    casConflicts,
		slotsProjected:  slotsProjected,
		slotsPurged:     slotsPurged,
		refundsRelayed:  refundsRelayed,
		requestDuration: requestDuration,
	}
}

// Handler отдаёт /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Hold(operation, result string) {
	if m == nil {
		return
	}
	m.holds.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) Confirmation(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}

func (m *Metrics) Cancellation(cancelledBy string, refundEligible bool) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(cancelledBy, strconv.FormatBool(refundEligible)).Inc()
}

func (m *Metrics) SweepReclaimed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepReclaimed.Add(float64(n))
}

func (m *Metrics) SweepFailure() {
	if m == nil {
		return
	}
	m.sweepFailures.Inc()
}

func (m *Metrics) StoreConflict() {
	if m == nil {
		return
	}
	m.casConflicts.Inc()
}

func (m *Metrics) SlotsProjected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsProjected.Add(float64(n))
}

func (m *Metrics) SlotsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsPurged.Add(float64(n))
}

func (m *Metrics) RefundsRelayed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.refundsRelayed.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
