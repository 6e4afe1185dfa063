package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "extended_hl_adapter"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry       *prometheus.Registry
	ordersPlaced   prometheus.Counter
	ordersFailed   prometheus.Counter
	cancels        prometheus.Counter
	infoRequests   prometheus.Counter
	bridgeTimeouts prometheus.Counter
	fillsRecorded  prometheus.Counter
	writeErrors    prometheus.Counter
	pollErrors     prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders placed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order placements that returned an err envelope.",
	})
	cancels := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cancels_requested_total",
		Help:      "Total number of cancel requests.",
	})
	infoRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "info_requests_total",
		Help:      "Total number of info endpoint calls.",
	})
	bridgeTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "bridge_timeouts_total",
		Help:      "Total number of synchronous calls that hit the run timeout.",
	})
	fillsRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "fills_recorded_total",
		Help:      "Total number of fills written by the recorder.",
	})
	writeErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "recorder_write_errors_total",
		Help:      "Total number of recorder database write failures.",
	})
	pollErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "recorder_poll_errors_total",
		Help:      "Total number of recorder polling failures.",
	})

	registry.MustRegister(ordersPlaced, ordersFailed, cancels, infoRequests, bridgeTimeouts, fillsRecorded, writeErrors, pollErrors)

	m := &Metrics{
		OrdersPlaced:       promCounter{ordersPlaced},
		OrdersFailed:       promCounter{ordersFailed},
		CancelsRequested:   promCounter{cancels},
		InfoRequests:       promCounter{infoRequests},
		BridgeTimeouts:     promCounter{bridgeTimeouts},
		FillsRecorded:      promCounter{fillsRecorded},
		RecorderWriteError: promCounter{writeErrors},
		RecorderPollError:  promCounter{pollErrors},
	}

	return &Prometheus{
		Metrics:        m,
		registry:       registry,
		ordersPlaced:   ordersPlaced,
		ordersFailed:   ordersFailed,
		cancels:        cancels,
		infoRequests:   infoRequests,
		bridgeTimeouts: bridgeTimeouts,
		fillsRecorded:  fillsRecorded,
		writeErrors:    writeErrors,
		pollErrors:     pollErrors,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
