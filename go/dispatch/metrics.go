// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of an exec, used as metric labels.
const (
	outcomeCommitted = "committed"
	outcomeFailed    = "failed"
	outcomePreviewed = "previewed"
)

type metrics struct {
	execs     *prometheus.CounterVec
	writes    prometheus.Counter
	events    prometheus.Counter
	payments  prometheus.Counter
	instances prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		execs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appvault",
			Subsystem: "dispatch",
			Name:      "exec_total",
			Help:      "Count of exec calls segmented by outcome.",
		}, []string{"outcome"}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appvault",
			Subsystem: "dispatch",
			Name:      "storage_writes_total",
			Help:      "Count of storage slots written by committed execs.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appvault",
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Count of application events emitted by committed execs.",
		}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appvault",
			Subsystem: "dispatch",
			Name:      "payments_total",
			Help:      "Count of payments delivered by committed execs.",
		}),
		instances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appvault",
			Subsystem: "dispatch",
			Name:      "instances_created_total",
			Help:      "Count of created execution instances, including registries.",
		}),
	}
}

func (m *metrics) register(registerer prometheus.Registerer) {
	registerer.MustRegister(m.execs, m.writes, m.events, m.payments, m.instances)
}

func (m *metrics) recordExec(outcome string, receipt receiptCounts) {
	m.execs.WithLabelValues(outcome).Inc()
	if outcome != outcomeCommitted {
		return
	}
	m.writes.Add(float64(receipt.writes))
	m.events.Add(float64(receipt.events))
	m.payments.Add(float64(receipt.payments))
}

type receiptCounts struct {
	writes, events, payments int
}
