package session

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Logger is the structured logging contract used across the package.
// glog loggers satisfy it out of the box.
type Logger interface {
	Trace(message string, args ...any)
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)
	Fatal(message string, args ...any)
}

// LoggerProvider resolves named, scoped loggers for subcomponents.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// ResolveLogger picks the effective logger for a component: a non-nil logger
// from the provider wins, then the fallback, then the package default. The
// returned provider always yields the resolved logger for the given name.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return provider, logger
		}
	}

	logger := fallback
	if logger == nil {
		logger = defaultLogger()
	}

	return staticLoggerProvider{logger: logger}, logger
}

type staticLoggerProvider struct {
	logger Logger
}

func (p staticLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

func defaultLogger() Logger {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("session"),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	return lgr.GetLogger("session")
}

// Session holds the attributes of a provider-issued auth session.
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// IdentityProvider is the external identity service the controller observes.
// Subscribe must deliver events in order; the returned function cancels the
// subscription.
type IdentityProvider interface {
	CurrentSession(ctx context.Context) (*SessionObject, error)
	Subscribe(handler func(evt AuthEvent)) (func(), error)
	SignOut(ctx context.Context) error
}

// ProfileBackend resolves a user id to its business profile. Errors should be
// classifiable as policy denial, not found, or transient; see errors.go.
type ProfileBackend interface {
	QueryProfile(ctx context.Context, userID string) (*Profile, error)
}

// KeyValueStore is the persistence port backing the profile cache. Get
// signals a missing key with ErrKeyNotFound.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
