package purge

import (
	"context"
	"log/slog"
	"sync"
)

// Listener is told, synchronously and inside the purge transaction, about
// components being disabled and issues being removed, so an external index
// can apply targeted updates. Returning an error aborts the purge call.
// Implementations must not touch the purge session.
type Listener interface {
	OnComponentsDisabling(ctx context.Context, projectUUID string, componentUUIDs []string) error
	OnIssuesRemoval(ctx context.Context, projectUUID string, issueKeys []string) error
}

// NopListener ignores all notifications.
type NopListener struct{}

// OnComponentsDisabling implements Listener.
func (NopListener) OnComponentsDisabling(context.Context, string, []string) error { return nil }

// OnIssuesRemoval implements Listener.
func (NopListener) OnIssuesRemoval(context.Context, string, []string) error { return nil }

// LoggingListener logs notifications, each component at most once for the
// lifetime of the listener.
type LoggingListener struct {
	logger *slog.Logger

	mu     sync.Mutex
	logged map[string]struct{}
}

// NewLoggingListener creates a LoggingListener. A nil logger selects the
// default logger.
func NewLoggingListener(logger *slog.Logger) *LoggingListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingListener{
		logger: logger.With("component", "purge.listener"),
		logged: make(map[string]struct{}),
	}
}

// OnComponentsDisabling implements Listener.
func (l *LoggingListener) OnComponentsDisabling(ctx context.Context, projectUUID string, componentUUIDs []string) error {
	fresh := l.markLogged(componentUUIDs)
	if len(fresh) == 0 {
		return nil
	}
	l.logger.InfoContext(ctx, "components disabled",
		"project_uuid", projectUUID,
		"count", len(fresh),
		"component_uuids", fresh,
	)
	return nil
}

// OnIssuesRemoval implements Listener.
func (l *LoggingListener) OnIssuesRemoval(ctx context.Context, projectUUID string, issueKeys []string) error {
	l.logger.InfoContext(ctx, "issues removed",
		"project_uuid", projectUUID,
		"count", len(issueKeys),
	)
	return nil
}

func (l *LoggingListener) markLogged(uuids []string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var fresh []string
	for _, u := range uuids {
		if _, ok := l.logged[u]; ok {
			continue
		}
		l.logged[u] = struct{}{}
		fresh = append(fresh, u)
	}
	return fresh
}
