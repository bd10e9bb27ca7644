// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package notify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/sirupsen/logrus"
)

// ReadyState is the connection state of a WsLike.
type ReadyState int

// The values match the WebSocket readyState constants clients
// already know.
const (
	Connecting ReadyState = 0
	Open       ReadyState = 1
	Closed     ReadyState = 2
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	}
	return fmt.Sprintf("ReadyState(%d)", int(s))
}

// ConnectionEstablished is the event sent on NotificationsResource
// when a WsLike opens.
const ConnectionEstablished = "connection.established"

// Errors returned from WsLike.Send.
var (
	// ErrEventParse is returned when the sent data is not a
	// JSON object.
	ErrEventParse = errors.New("Unparsable event")

	// ErrInvalidSendResource is returned when the sent event is
	// not addressed to the "_client" resource.
	ErrInvalidSendResource = errors.New("Invalid resource")

	// ErrNoEventOnSend is returned when the sent event has no
	// event name.
	ErrNoEventOnSend = errors.New("Event is required")

	// ErrNotOpen is returned when sending on a WsLike that is not
	// open.
	ErrNotOpen = errors.New("Connection is not open")
)

// ErrInvalidEventOnSend is returned when the sent event is neither
// "subscribe" nor "unsubscribe".
type ErrInvalidEventOnSend struct {
	Event string
}

func (err ErrInvalidEventOnSend) Error() string {
	return fmt.Sprintf("Invalid event - %v", err.Event)
}

// WsLike presents a Notifications registry through the shape of a
// browser WebSocket.  A client sends control events such as
//
//     {"resource": "_client", "event": "subscribe",
//      "data": {"resource": "/importers"}}
//
// and receives every subsequent event on that resource as a JSON
// encoded restdata.Notification through OnMessage.
type WsLike struct {
	// URL is the address the client connected to.  It is only
	// recorded.
	URL string

	// OnOpen, OnMessage and OnClose are the client's callbacks;
	// any may be nil.  OnMessage is never called concurrently
	// with itself.
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func()

	notifications *Notifications
	log           logrus.FieldLogger

	lock  sync.Mutex
	state ReadyState
	subs  map[string]string

	deliverLock sync.Mutex
}

// NewWsLike creates a new connection to a registry.  It is in the
// Connecting state until Open is called, so the caller can set its
// callbacks first.
func NewWsLike(n *Notifications, url string) *WsLike {
	return &WsLike{
		URL:           url,
		notifications: n,
		log:           n.Log.WithField("url", url),
		state:         Connecting,
		subs:          make(map[string]string),
	}
}

// ReadyState returns the current connection state.
func (ws *WsLike) ReadyState() ReadyState {
	ws.lock.Lock()
	defer ws.lock.Unlock()
	return ws.state
}

// Open moves the connection to the Open state, calls OnOpen, and
// delivers the connection.established event.
func (ws *WsLike) Open() {
	ws.lock.Lock()
	if ws.state != Connecting {
		ws.lock.Unlock()
		return
	}
	ws.state = Open
	ws.lock.Unlock()

	if ws.OnOpen != nil {
		ws.OnOpen()
	}
	ws.deliver(restdata.Notification{
		Resource: restdata.NotificationsResource,
		Event:    ConnectionEstablished,
	})
}

// deliver encodes one notification and passes it to OnMessage.
func (ws *WsLike) deliver(msg restdata.Notification) {
	if ws.ReadyState() != Open || ws.OnMessage == nil {
		return
	}
	data, err := restdata.EncodeJSON(msg)
	if err != nil {
		ws.log.WithError(err).WithField("event", msg.Event).Error("could not encode notification")
		return
	}
	ws.deliverLock.Lock()
	defer ws.deliverLock.Unlock()
	ws.OnMessage(data)
}

// clientEvent is a control event sent by the client.
type clientEvent struct {
	Resource *string `json:"resource"`
	Event    *string `json:"event"`
	Data     struct {
		Resource string `json:"resource"`
	} `json:"data"`
}

// Send processes one control event from the client.
func (ws *WsLike) Send(data []byte) error {
	if ws.ReadyState() != Open {
		return ErrNotOpen
	}
	var ev clientEvent
	if err := restdata.DecodeJSON(data, &ev); err != nil {
		return ErrEventParse
	}
	if ev.Resource == nil || *ev.Resource != restdata.ClientResource {
		return ErrInvalidSendResource
	}
	if ev.Event == nil {
		return ErrNoEventOnSend
	}
	switch *ev.Event {
	case "subscribe":
		return ws.subscribe(ev.Data.Resource)
	case "unsubscribe":
		ws.unsubscribe(ev.Data.Resource)
		return nil
	default:
		return ErrInvalidEventOnSend{Event: *ev.Event}
	}
}

// subscribe subscribes to a resource, once.
func (ws *WsLike) subscribe(resource string) error {
	ws.lock.Lock()
	defer ws.lock.Unlock()
	if _, present := ws.subs[resource]; present {
		return nil
	}
	id, err := ws.notifications.Subscribe(resource, ws.deliver)
	if err != nil {
		return err
	}
	ws.subs[resource] = id
	return nil
}

func (ws *WsLike) unsubscribe(resource string) {
	ws.lock.Lock()
	defer ws.lock.Unlock()
	if id, present := ws.subs[resource]; present {
		ws.notifications.Unsubscribe(id)
		delete(ws.subs, resource)
	}
}

// Subscriptions returns the resources currently subscribed to.
func (ws *WsLike) Subscriptions() []string {
	ws.lock.Lock()
	defer ws.lock.Unlock()
	var result []string
	for resource := range ws.subs {
		result = append(result, resource)
	}
	return result
}

// Close drops every subscription and calls OnClose.  Closing twice
// does nothing.
func (ws *WsLike) Close() {
	ws.lock.Lock()
	if ws.state == Closed {
		ws.lock.Unlock()
		return
	}
	ws.state = Closed
	for resource, id := range ws.subs {
		ws.notifications.Unsubscribe(id)
		delete(ws.subs, resource)
	}
	ws.lock.Unlock()

	if ws.OnClose != nil {
		ws.OnClose()
	}
}
