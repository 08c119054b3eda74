// Package notify forwards pipeline step events to chat webhooks. The
// notifier filters by step name so operators only hear about the steps
// they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier implements domain.StepObserver by rendering each step event and
// dispatching it to every sender.
type Notifier struct {
	senders []Sender
	steps   map[domain.Step]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty steps list lets every step
// through; failed steps are always forwarded.
func NewNotifier(senders []Sender, steps []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.Step]bool, len(steps))
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			allowed[domain.Step(s)] = true
		}
	}
	return &Notifier{
		senders: senders,
		steps:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// StepCompleted satisfies domain.StepObserver.
func (n *Notifier) StepCompleted(ctx context.Context, ev domain.StepEvent) error {
	if ev.Step != domain.StepFailed && len(n.steps) > 0 && !n.steps[ev.Step] {
		n.logger.DebugContext(ctx, "step filtered out", slog.String("step", string(ev.Step)))
		return nil
	}
	title, message := Render(ev)
	return n.dispatch(ctx, title, message)
}

// Render turns a step event into a title and a plain-text body.
func Render(ev domain.StepEvent) (string, string) {
	title := strings.ReplaceAll(string(ev.Step), "_", " ")
	if ev.Step == domain.StepFailed {
		title = "step failed"
	}

	var b strings.Builder
	if ev.Key != "" {
		fmt.Fprintf(&b, "key: %s\n", ev.Key)
	}
	if ev.TxHash != "" {
		fmt.Fprintf(&b, "tx: %s\n", ev.TxHash)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", ev.Error)
	}
	keys := make([]string, 0, len(ev.Detail))
	for k := range ev.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, ev.Detail[k])
	}
	if ev.Elapsed > 0 {
		fmt.Fprintf(&b, "elapsed: %s\n", ev.Elapsed)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// dispatch keeps going past individual sender failures and joins them.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

var _ domain.StepObserver = (*Notifier)(nil)
