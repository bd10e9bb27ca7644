// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"time"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/notify"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/diffeo/go-mediamanager/restserver"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// NewHandler builds the complete HTTP handler of the daemon: the
// REST API, the notifications WebSocket, and metrics, behind
// recovery, request logging, and request metrics middleware.  The
// returned function closes open changes feeds and notification
// subscriptions.
func NewHandler(service mediamanager.Service, logger *logrus.Logger, log logrus.FieldLogger) (http.Handler, func(), error) {
	notifications := notify.New(log.WithField("component", "notify"))
	notifications.Dropped = func(resource, event string) {
		droppedNotifications.WithLabelValues(resource).Inc()
	}

	api, err := restserver.NewAPI(service, countingPublisher{notifications}, log.WithField("component", "api"))
	if err != nil {
		return nil, nil, err
	}

	r := mux.NewRouter()
	api.PopulateRouter(r)
	r.Handle(restdata.NotificationsResource, notify.NewHandler(notifications))
	r.Handle("/metrics", promhttp.Handler())

	done := make(chan struct{})
	go observe(notifications, done)

	recovery := negroni.NewRecovery()
	recovery.Logger = logger
	recovery.PrintStack = false
	n := negroni.New(recovery, requestLogger(log), negroni.HandlerFunc(instrument))
	n.UseHandler(r)

	shutdown := func() {
		close(done)
		if err := api.Close(); err != nil {
			log.WithError(err).Warn("could not close changes feeds")
		}
		notifications.Close()
	}
	return n, shutdown, nil
}

// requestLogger logs every request at debug level, and failed
// requests at warning level.
func requestLogger(log logrus.FieldLogger) negroni.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
		start := time.Now()
		next(rw, req)
		res := rw.(negroni.ResponseWriter)
		entry := log.WithFields(logrus.Fields{
			"method":   req.Method,
			"path":     req.URL.Path,
			"status":   res.Status(),
			"duration": time.Since(start),
		})
		if res.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Debug("request")
		}
	}
}

// countingPublisher counts every notification on its way to the
// registry.
type countingPublisher struct {
	*notify.Notifications
}

func (p countingPublisher) Publish(resource, event string, data interface{}) {
	notificationEvents.WithLabelValues(resource, event).Inc()
	p.Notifications.Publish(resource, event, data)
}
