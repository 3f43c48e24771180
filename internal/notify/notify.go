// Package notify pushes lifecycle events to the requesting user: first over
// the live websocket channel if one is open, with an FCM push as fallback
// for users without an active connection.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// Broadcaster is the websocket side (internal/dispatch.Hub).
type Broadcaster interface {
	Broadcast(requestID int64, v interface{})
	SubscriberCount(requestID int64) int
}

type event struct {
	RequestID int64  `json:"request_id"`
	Event     string `json:"event"`
	Mechanic  string `json:"mechanic_id,omitempty"`
}

// FCM posts JSON to the FCM HTTPv1 endpoint using a server key or oauth token.
type FCM struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCM(endpoint, key string) *FCM {
	return &FCM{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCM) push(payload interface{}) {
	body := map[string]interface{}{"message": map[string]interface{}{"data": payload}}
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", f.Endpoint, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	// best-effort push
	_, _ = f.Client.Do(req)
}

// Notifier fans a lifecycle event out to the websocket hub and, when nobody
// is listening there, to FCM. Either side may be nil.
type Notifier struct {
	Hub Broadcaster
	FCM *FCM
}

func (n *Notifier) notify(ev event) {
	if n.Hub != nil && n.Hub.SubscriberCount(ev.RequestID) > 0 {
		n.Hub.Broadcast(ev.RequestID, ev)
		return
	}
	if n.FCM != nil {
		n.FCM.push(ev)
	}
}

func (n *Notifier) RequestAccepted(requestID int64, mechanicID string) {
	n.notify(event{RequestID: requestID, Event: "accepted", Mechanic: mechanicID})
}

func (n *Notifier) RequestCompleted(requestID int64) {
	n.notify(event{RequestID: requestID, Event: "completed"})
}
