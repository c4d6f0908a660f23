// Package notify delivers user-facing notifications with optional actions.
package notify

import (
	"context"
	"strings"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Action is a user choice attached to a notification.
type Action struct {
	Label string // Short, lowercase, unique within the notification
	Run   func(ctx context.Context) error
}

// Notification is a message for the user.
type Notification struct {
	Title    string
	Body     string
	Severity core.Severity
	Actions  []Action
}

// Action returns the action labelled label.
func (n Notification) Action(label string) (Action, bool) {
	for _, a := range n.Actions {
		if strings.EqualFold(a.Label, label) {
			return a, true
		}
	}
	return Action{}, false
}

// Labels returns the labels of n's actions in order.
func (n Notification) Labels() []string {
	labels := make([]string, len(n.Actions))
	for i, a := range n.Actions {
		labels[i] = a.Label
	}
	return labels
}

// Invoke runs the action labelled label.
func (n Notification) Invoke(ctx context.Context, label string) error {
	a, ok := n.Action(label)
	if !ok {
		return &core.UnknownActionError{Action: label}
	}
	return a.Run(ctx)
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to a Notifier.
type Func func(ctx context.Context, n Notification)

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }
