package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from the writer's inbox and persists them.
// Store failures are logged once per event and swallowed; the worker never
// crashes the process over a sink problem.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

// NewWorker wires a store to a writer inbox.
func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until ctx is cancelled, then drains whatever is
// already buffered so accepted events are not lost on shutdown. Appends use
// a background context: a cancelled request must not truncate a record that
// was already accepted.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.append(event)
		default:
			return
		}
	}
}

func (w *Worker) append(event Event) {
	if err := w.store.Append(context.Background(), event); err != nil {
		sinkErrorsTotal.Inc()
		w.logger.Error("audit append failed",
			"event_id", event.ID,
			"event_type", string(event.Type),
			"error", err,
		)
	}
}
