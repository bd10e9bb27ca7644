// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diffeo/go-mediamanager/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/negroni"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffeo",
			Subsystem: "mediamanager",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)

	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diffeo",
			Subsystem: "mediamanager",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	notificationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffeo",
			Subsystem: "mediamanager",
			Name:      "notifications_total",
			Help:      "Published notifications by resource and event",
		},
		[]string{"resource", "event"},
	)

	droppedNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffeo",
			Subsystem: "mediamanager",
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped for slow subscribers",
		},
		[]string{"resource"},
	)

	subscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "diffeo",
			Subsystem: "mediamanager",
			Name:      "notification_subscribers",
			Help:      "Live notification subscriptions by resource",
		},
		[]string{"resource"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpLatency, notificationEvents, droppedNotifications, subscribers)
}

// instrument is negroni middleware recording request counts and
// latencies.
func instrument(rw http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(rw, req)
	res := rw.(negroni.ResponseWriter)
	httpRequests.WithLabelValues(req.Method, strconv.Itoa(res.Status())).Inc()
	httpLatency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
}

// observe samples subscriber counts until done is closed.
func observe(n *notify.Notifications, done <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		for _, resource := range n.Resources() {
			subscribers.WithLabelValues(resource).Set(float64(n.SubscriberCount(resource)))
		}
		select {
		case <-ticker.C:
		case <-done:
			return
		}
	}
}
