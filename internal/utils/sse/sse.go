package sse

import (
	"sync"
)

// Notification is pushed to a connected client when something changes
// server-side, currently credit balance updates from webhook processing.
type Notification struct {
	Event   string `json:"event"`
	Credits int    `json:"credits"`
	Message string `json:"message,omitempty"`
}

var channels sync.Map

// RegisterChannel creates (or replaces) the notification channel for a user.
func RegisterChannel(userID string) chan Notification {
	ch := make(chan Notification, 8)
	if prev, loaded := channels.Swap(userID, ch); loaded {
		close(prev.(chan Notification))
	}
	return ch
}

func UnregisterChannel(userID string) {
	if prev, loaded := channels.LoadAndDelete(userID); loaded {
		close(prev.(chan Notification))
	}
}

// Notify delivers a notification without blocking. Offline users and slow
// consumers are skipped.
func Notify(userID string, n Notification) {
	value, ok := channels.Load(userID)
	if !ok {
		return
	}
	select {
	case value.(chan Notification) <- n:
	default:
	}
}
