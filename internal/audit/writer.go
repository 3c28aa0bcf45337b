package audit

import (
	"log/slog"
)

// Writer accepts audit events from the request path. Write never blocks and
// never returns an error: a slow or failing sink must not delay or fail the
// primary request/webhook flow. Events pass through the redactor before they
// are handed to the worker, so no sink ever sees secret material.
type Writer struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewWriter builds a writer with a bounded queue. When the queue is full the
// event is dropped and counted; blocking the caller is never an option here.
func NewWriter(buffer int, logger *slog.Logger) *Writer {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Writer{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Write validates, redacts, and enqueues an event. Invalid events are logged
// locally and dropped; they are never partially written.
func (w *Writer) Write(event Event) {
	if !event.valid() {
		w.logger.Warn("dropping malformed audit event",
			"event_type", string(event.Type),
			"has_id", event.ID != "",
		)
		droppedTotal.WithLabelValues("invalid_shape").Inc()
		return
	}

	event = redactEvent(event)

	select {
	case w.inbox <- event:
		eventsTotal.WithLabelValues(string(event.Type), string(event.Result)).Inc()
	default:
		w.logger.Warn("audit buffer full, dropping event",
			"event_type", string(event.Type),
		)
		droppedTotal.WithLabelValues("buffer_full").Inc()
	}
}

// Inbox exposes the queue for the persistence worker.
func (w *Writer) Inbox() <-chan Event {
	return w.inbox
}
