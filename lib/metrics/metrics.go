package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "xreplay"

	SubsystemDispatch = "dispatch"
	SubsystemState    = "state"
	SubsystemLedger   = "ledger"

	LabelCommand = "command"
	LabelStatus  = "status"
	LabelResult  = "result"
	LabelEngine  = "engine"
)

// dispatch
var (
	DispatchCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDispatch,
			Name:      "dispatch_total",
			Help:      "Total number of dispatched events.",
		},
		[]string{LabelCommand, LabelStatus})
	DispatchHistogram = prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDispatch,
			Name:      "dispatch_seconds",
			Help:      "Histogram of event dispatch latency.",
			Buckets:   prom.DefBuckets,
		},
		[]string{LabelCommand})
	CallDepthHistogram = prom.NewHistogram(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDispatch,
			Name:      "call_depth",
			Help:      "Histogram of the deepest contract call stack per event.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 16, 32},
		})
	StaticCallCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDispatch,
			Name:      "static_call_total",
			Help:      "Total number of static calls.",
		},
		[]string{LabelStatus})
)

// state
var (
	FrameCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemState,
			Name:      "frame_total",
			Help:      "Total number of resolved execution frames.",
		},
		[]string{LabelResult})
	StateCacheCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemState,
			Name:      "cache_total",
			Help:      "Committed state read cache hits and misses.",
		},
		[]string{LabelResult})
)

// ledger
var (
	ReceiptCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemLedger,
			Name:      "receipt_total",
			Help:      "Total number of persisted receipts.",
		},
		[]string{LabelEngine})
)

var registerOnce sync.Once

func RegisterMetrics() {
	registerOnce.Do(func() {
		// dispatch
		prom.MustRegister(DispatchCounter)
		prom.MustRegister(DispatchHistogram)
		prom.MustRegister(CallDepthHistogram)
		prom.MustRegister(StaticCallCounter)
		// state
		prom.MustRegister(FrameCounter)
		prom.MustRegister(StateCacheCounter)
		// ledger
		prom.MustRegister(ReceiptCounter)
	})
}
