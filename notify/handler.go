// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package notify

import (
	"net/http"
	"time"

	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

// ClientErrorEvent is the event sent on NotificationsResource when a
// control event from the client is rejected.
const ClientErrorEvent = "client.error"

// Handler serves a Notifications registry over WebSocket.  Each
// connection gets its own WsLike; text frames from the client are
// passed to its Send method and notifications are written back as
// text frames.
type Handler struct {
	Notifications *Notifications
	Upgrader      websocket.Upgrader
	Log           logrus.FieldLogger
}

// NewHandler creates a WebSocket handler for a registry.
func NewHandler(n *Notifications) *Handler {
	return &Handler{
		Notifications: n,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
		Log: n.Log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.Log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	log := h.Log.WithField("remote", req.RemoteAddr)

	ws := NewWsLike(h.Notifications, req.URL.String())
	send := make(chan []byte, sendQueueSize)
	done := make(chan struct{})
	ws.OnMessage = func(data []byte) {
		select {
		case send <- data:
		case <-done:
		default:
			log.Warn("websocket client not keeping up, dropping notification")
		}
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, send, done, log)
	}()
	ws.Open()
	h.readPump(conn, ws, log)

	ws.Close()
	close(done)
	<-writerDone
	_ = conn.Close()
}

// readPump feeds client frames to ws until the connection fails.
func (h *Handler) readPump(conn *websocket.Conn, ws *WsLike, log logrus.FieldLogger) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.WithError(err).Error("failed to set read deadline")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("unexpected websocket close")
			}
			return
		}
		if err := ws.Send(data); err != nil {
			log.WithError(err).Debug("rejected client event")
			ws.deliverError(err)
		}
	}
}

// writePump writes queued notifications and keepalive pings until
// done is closed.
func (h *Handler) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}, log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.WithError(err).Error("failed to set write deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithError(err).Debug("failed to write notification")
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// deliverError reports a rejected control event back to the client.
func (ws *WsLike) deliverError(err error) {
	ws.deliver(restdata.Notification{
		Resource: restdata.NotificationsResource,
		Event:    ClientErrorEvent,
		Data:     restdata.Rep{"message": err.Error()},
	})
}
