// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package notify carries backend events to subscribers.
//
// A Notifications value is a registry of resource channels.  Each
// channel accepts only events in its own namespace: "/importers"
// carries "import.*" events, "/storage/synchronizers" carries
// "sync.*", and "/storage/changes-feed" carries "doc.*".  The REST
// server publishes into it; WsLike adapts it to a WebSocket-style
// client interface, and Handler serves that over a real WebSocket.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// DefaultChannels maps each notification resource to the event
// prefix it carries.
var DefaultChannels = map[string]string{
	"/importers":             "import.",
	"/storage/synchronizers": "sync.",
	"/storage/changes-feed":  "doc.",
}

// DefaultBufferSize is the number of undelivered messages a
// subscription holds before it starts dropping them.
const DefaultBufferSize = 256

// ErrInvalidResource is returned when subscribing to a resource that
// has no channel.
type ErrInvalidResource struct {
	Resource string
}

func (err ErrInvalidResource) Error() string {
	return fmt.Sprintf("Invalid resource - %v", err.Resource)
}

// Callback receives one notification.  Callbacks for a single
// subscription are called in order from one goroutine.
type Callback func(restdata.Notification)

type subscription struct {
	id       string
	resource string
	messages chan restdata.Notification
	done     chan struct{}
}

// Notifications is a publish/subscribe registry.  Its methods are
// safe to call from multiple goroutines.
type Notifications struct {
	// Log receives diagnostics.
	Log logrus.FieldLogger

	// BufferSize is the depth of each subscription's queue.
	BufferSize int

	// Dropped, if set, is called when a message is dropped
	// because a subscriber is not keeping up.
	Dropped func(resource, event string)

	channels map[string]string
	lock     sync.Mutex
	subs     map[string]*subscription
}

// New creates a registry with DefaultChannels.
func New(log logrus.FieldLogger) *Notifications {
	return NewWithChannels(DefaultChannels, log)
}

// NewWithChannels creates a registry with an explicit set of
// channels, mapping resource to event prefix.  An empty prefix
// accepts every event.
func NewWithChannels(channels map[string]string, log logrus.FieldLogger) *Notifications {
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := &Notifications{
		Log:        log,
		BufferSize: DefaultBufferSize,
		channels:   make(map[string]string),
		subs:       make(map[string]*subscription),
	}
	for resource, prefix := range channels {
		n.channels[resource] = prefix
	}
	return n
}

// Resources returns the names of every channel, sorted.
func (n *Notifications) Resources() []string {
	result := make([]string, 0, len(n.channels))
	for resource := range n.channels {
		result = append(result, resource)
	}
	sort.Strings(result)
	return result
}

// Publish sends an event to every subscriber of resource.  Events
// for unknown resources, or outside the resource's namespace, are
// dropped.  Publish never blocks on a slow subscriber.
func (n *Notifications) Publish(resource, event string, data interface{}) {
	prefix, known := n.channels[resource]
	if !known || !strings.HasPrefix(event, prefix) {
		n.Log.WithFields(logrus.Fields{
			"resource": resource,
			"event":    event,
		}).Debug("ignoring notification outside any channel")
		return
	}
	msg := restdata.Notification{Resource: resource, Event: event, Data: data}

	n.lock.Lock()
	defer n.lock.Unlock()
	for _, sub := range n.subs {
		if sub.resource != resource {
			continue
		}
		select {
		case sub.messages <- msg:
		default:
			n.Log.WithFields(logrus.Fields{
				"subscription": sub.id,
				"event":        event,
			}).Warn("subscriber queue full, dropping notification")
			if n.Dropped != nil {
				n.Dropped(resource, event)
			}
		}
	}
}

// Subscribe arranges for callback to be called with every event
// published on resource.  It returns a subscription id for
// Unsubscribe.
func (n *Notifications) Subscribe(resource string, callback Callback) (string, error) {
	if _, known := n.channels[resource]; !known {
		return "", ErrInvalidResource{Resource: resource}
	}
	size := n.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	sub := &subscription{
		id:       uuid.NewV4().String(),
		resource: resource,
		messages: make(chan restdata.Notification, size),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		for msg := range sub.messages {
			callback(msg)
		}
	}()

	n.lock.Lock()
	n.subs[sub.id] = sub
	n.lock.Unlock()
	n.Log.WithFields(logrus.Fields{
		"resource":     resource,
		"subscription": sub.id,
	}).Debug("subscribed")
	return sub.id, nil
}

// Unsubscribe ends a subscription.  Messages already queued are still
// delivered.  Unknown ids are ignored.  Returns true if the
// subscription existed.
func (n *Notifications) Unsubscribe(id string) bool {
	n.lock.Lock()
	sub, present := n.subs[id]
	if present {
		delete(n.subs, id)
		close(sub.messages)
	}
	n.lock.Unlock()
	return present
}

// Close ends every subscription and waits for queued messages to be
// delivered.
func (n *Notifications) Close() {
	n.lock.Lock()
	subs := n.subs
	n.subs = make(map[string]*subscription)
	for _, sub := range subs {
		close(sub.messages)
	}
	n.lock.Unlock()
	for _, sub := range subs {
		<-sub.done
	}
}

// SubscriberCount returns the number of live subscriptions to a
// resource.
func (n *Notifications) SubscriberCount(resource string) int {
	n.lock.Lock()
	defer n.lock.Unlock()
	count := 0
	for _, sub := range n.subs {
		if sub.resource == resource {
			count++
		}
	}
	return count
}
