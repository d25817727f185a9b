// Package delivery declares the external collaborators the lifecycle manager
// talks to. Real providers (email/SMS, org directory, retention job) live
// outside this module; the implementations here are wiring stand-ins.
package delivery

import (
	"context"

	"go.uber.org/zap"
)

// Contact is one delivery target inside an organizational unit.
type Contact struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsLeader bool   `json:"is_leader,omitempty"`
}

// Result reports a dispatch outcome. Entries in Errors are advisory; only a
// returned error blocks the sent transition.
type Result struct {
	EmailsSent int
	SMSSent    int
	Errors     []string
}

// Dispatcher sends one token per contact through the external channel.
type Dispatcher interface {
	SendBatch(ctx context.Context, contacts []Contact, tokens []string, assessmentName, senderName string) (*Result, error)
}

// ContactDirectory resolves the delivery targets of a unit. An empty list is
// a valid outcome, not an error.
type ContactDirectory interface {
	UnitContacts(ctx context.Context, unitID string) ([]Contact, error)
}

// RetentionJob purges time-expired operational logs. Its retention windows
// are its own configuration; this core only guarantees at most one invocation
// per calendar day.
type RetentionJob interface {
	Run(ctx context.Context) error
}

// LogDispatcher records what would have been sent. Used until a real provider
// is configured.
type LogDispatcher struct {
	Log *zap.Logger
}

func (d *LogDispatcher) SendBatch(_ context.Context, contacts []Contact, tokens []string, assessmentName, senderName string) (*Result, error) {
	d.Log.Info("dispatch skipped, no delivery provider configured",
		zap.String("assessment", assessmentName),
		zap.String("sender", senderName),
		zap.Int("contacts", len(contacts)),
		zap.Int("tokens", len(tokens)))
	return &Result{}, nil
}

// EmptyDirectory is a directory with no contacts.
type EmptyDirectory struct{}

func (EmptyDirectory) UnitContacts(context.Context, string) ([]Contact, error) {
	return nil, nil
}

// NoopRetention satisfies RetentionJob when no purge job is wired.
type NoopRetention struct{}

func (NoopRetention) Run(context.Context) error { return nil }
