package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// VoucherEvaluations counts voucher evaluations by outcome (accepted, rejected, not_found, error).
	VoucherEvaluations *prometheus.CounterVec
	// OrdersPlaced counts committed checkouts by payment method.
	OrdersPlaced *prometheus.CounterVec
	// OrderRevenue accumulates the charged total of placed orders.
	OrderRevenue prometheus.Counter
	// CacheOperations counts cache lookups by cache name and result (hit, miss, error).
	CacheOperations *prometheus.CounterVec
	// TasksProcessed counts background task outcomes by type.
	TasksProcessed *prometheus.CounterVec
	// BreakerState reports breaker state per target: 0=closed, 1=open, 2=half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts breaker state changes.
	BreakerTransitions *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
// Collectors are usable (unregistered) before this is called so packages can
// record metrics in tests without a registry.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		VoucherEvaluations = newVoucherEvaluations(namespace)
		OrdersPlaced = newOrdersPlaced(namespace)
		OrderRevenue = newOrderRevenue(namespace)
		CacheOperations = newCacheOperations(namespace)
		TasksProcessed = newTasksProcessed(namespace)
		BreakerState = newBreakerState(namespace)
		BreakerTransitions = newBreakerTransitions(namespace)

		mustRegisterCollector(reg, VoucherEvaluations, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				VoucherEvaluations = v
			}
		})
		mustRegisterCollector(reg, OrdersPlaced, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersPlaced = v
			}
		})
		mustRegisterCollector(reg, OrderRevenue, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrderRevenue = v
			}
		})
		mustRegisterCollector(reg, CacheOperations, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CacheOperations = v
			}
		})
		mustRegisterCollector(reg, TasksProcessed, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TasksProcessed = v
			}
		})
		mustRegisterCollector(reg, BreakerState, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				BreakerState = v
			}
		})
		mustRegisterCollector(reg, BreakerTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BreakerTransitions = v
			}
		})
	})
}

func init() {
	VoucherEvaluations = newVoucherEvaluations("bookstore")
	OrdersPlaced = newOrdersPlaced("bookstore")
	OrderRevenue = newOrderRevenue("bookstore")
	CacheOperations = newCacheOperations("bookstore")
	TasksProcessed = newTasksProcessed("bookstore")
	BreakerState = newBreakerState("bookstore")
	BreakerTransitions = newBreakerTransitions("bookstore")
}

func newVoucherEvaluations(ns string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "voucher_evaluations_total",
		Help:      "Count of voucher evaluations by outcome.",
	}, []string{"result"})
}

func newOrdersPlaced(ns string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "orders_placed_total",
		Help:      "Count of orders placed by payment method.",
	}, []string{"payment_method"})
}

func newOrderRevenue(ns string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "order_revenue_total",
		Help:      "Sum of charged order totals.",
	})
}

func newCacheOperations(ns string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "cache_operations_total",
		Help:      "Count of cache lookups by cache and result.",
	}, []string{"cache", "result"})
}

func newTasksProcessed(ns string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "tasks_processed_total",
		Help:      "Count of background tasks processed by type and result.",
	}, []string{"type", "result"})
}

func newBreakerState(ns string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "breaker_state",
		Help:      "Current breaker state: 0=closed,1=open,2=half-open",
	}, []string{"target"})
}

func newBreakerTransitions(ns string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "breaker_transition_total",
		Help:      "Count of breaker state transitions.",
	}, []string{"target", "from", "to"})
}

// CacheResult records a cache lookup outcome.
func CacheResult(cache string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	CacheOperations.WithLabelValues(cache, result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
