// Copyright (c) 2026, The embeNET Node Port Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package metrics exports radio driver activity and energy consumption to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/embenet/nodeport/energy"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/radio"
	. "github.com/embenet/nodeport/types"
)

const (
	namespace = "embenet"
	subsystem = "radio"
)

// Collector counts the activity of the radio drivers of one or more nodes. Each driver gets
// its own observer from ForNode.
type Collector struct {
	posted       *prometheus.CounterVec
	postFailures *prometheus.CounterVec
	frames       *prometheus.CounterVec
	received     *prometheus.CounterVec
	stale        *prometheus.CounterVec
	rssi         *prometheus.HistogramVec
	length       *prometheus.HistogramVec
}

func NewCollector() *Collector {
	return &Collector{
		posted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chains_posted_total",
			Help:      "Command chains posted to the radio.",
		}, []string{"node", "direction"}),
		postFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "post_failures_total",
			Help:      "Command chains the radio refused.",
		}, []string{"node", "direction"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frame_callbacks_total",
			Help:      "Start and end of frame callbacks.",
		}, []string{"node", "direction", "edge"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Completed receptions by result.",
		}, []string{"node", "result"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_events_total",
			Help:      "Radio events dropped because the driver was idle.",
		}, []string{"node", "direction"}),
		rssi: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rssi_dbm",
			Help:      "Signal strength of received frames.",
			Buckets:   prometheus.LinearBuckets(-110, 10, 10),
		}, []string{"node"}),
		length: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frame_length_bytes",
			Help:      "Payload length of received frames.",
			Buckets:   prometheus.LinearBuckets(16, 16, 8),
		}, []string{"node"}),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.posted.Describe(ch)
	c.postFailures.Describe(ch)
	c.frames.Describe(ch)
	c.received.Describe(ch)
	c.stale.Describe(ch)
	c.rssi.Describe(ch)
	c.length.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.posted.Collect(ch)
	c.postFailures.Collect(ch)
	c.frames.Collect(ch)
	c.received.Collect(ch)
	c.stale.Collect(ch)
	c.rssi.Collect(ch)
	c.length.Collect(ch)
}

// ForNode returns the observer to install on the driver of node id.
func (c *Collector) ForNode(id NodeId) radio.Observer {
	return &nodeObserver{c: c, node: strconv.Itoa(id)}
}

type nodeObserver struct {
	c    *Collector
	node string
}

func (o *nodeObserver) ChainPosted(dir radio.Direction, err error) {
	o.c.posted.WithLabelValues(o.node, dir.String()).Inc()
	if err != nil {
		o.c.postFailures.WithLabelValues(o.node, dir.String()).Inc()
	}
}

func (o *nodeObserver) FrameStarted(dir radio.Direction, _ TimeUs) {
	o.c.frames.WithLabelValues(o.node, dir.String(), "start").Inc()
}

func (o *nodeObserver) FrameEnded(dir radio.Direction, _ TimeUs) {
	o.c.frames.WithLabelValues(o.node, dir.String(), "end").Inc()
}

func (o *nodeObserver) FrameReceived(result radio.RxResult, length int, rssi int8) {
	o.c.received.WithLabelValues(o.node, result.String()).Inc()
	if result == radio.RxResultOk {
		o.c.rssi.WithLabelValues(o.node).Observe(float64(rssi))
		o.c.length.WithLabelValues(o.node).Observe(float64(length))
	}
}

func (o *nodeObserver) StaleEvent(dir radio.Direction) {
	o.c.stale.WithLabelValues(o.node, dir.String()).Inc()
}

// EnergyCollector reports the consumption accounted by an energy meter, up to the time
// returned by now, at every scrape.
type EnergyCollector struct {
	meter *energy.Meter
	now   func() uint64
	desc  *prometheus.Desc
}

func NewEnergyCollector(meter *energy.Meter, now func() uint64) *EnergyCollector {
	return &EnergyCollector{
		meter: meter,
		now:   now,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "energy", "consumed_millijoules"),
			"Energy consumed by the radio per state.",
			[]string{"node", "state"}, nil,
		),
	}
}

func (e *EnergyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.desc
}

func (e *EnergyCollector) Collect(ch chan<- prometheus.Metric) {
	for _, r := range e.meter.Report(e.now()) {
		node := strconv.Itoa(r.NodeId)
		ch <- prometheus.MustNewConstMetric(e.desc, prometheus.CounterValue, r.Off, node, "off")
		ch <- prometheus.MustNewConstMetric(e.desc, prometheus.CounterValue, r.Idle, node, "idle")
		ch <- prometheus.MustNewConstMetric(e.desc, prometheus.CounterValue, r.Tx, node, "tx")
		ch <- prometheus.MustNewConstMetric(e.desc, prometheus.CounterValue, r.Rx, node, "rx")
	}
}

// NewRegistry returns a registry holding the Go runtime collectors and cs.
func NewRegistry(cs ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollections(collectors.GoRuntimeMemStatsCollection | collectors.GoRuntimeMetricsCollection),
	))
	for _, c := range cs {
		reg.MustRegister(c)
	}
	return reg
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("metrics served on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "metrics server on %s", addr)
	}
	return nil
}
