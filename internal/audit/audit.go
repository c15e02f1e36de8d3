package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"moderation/internal/engine"
	"moderation/internal/metrics"
)

// Event is one audit trail entry for a completed evaluation. Events carry
// no content, only provenance.
type Event struct {
	ID           string
	CommentID    int64
	AssessmentID int64
	Decision     engine.Decision
	Layer        string
	At           time.Time
}

// NewEvent stamps an event with a fresh id and timestamp.
func NewEvent(commentID, assessmentID int64, decision engine.Decision, layer string) Event {
	return Event{
		ID:           uuid.NewString(),
		CommentID:    commentID,
		AssessmentID: assessmentID,
		Decision:     decision,
		Layer:        layer,
		At:           time.Now().UTC(),
	}
}

// Queue is an explicit asynchronous task queue for fire-and-forget audit
// events. Delivery is at-most-once: when the buffer is full the event is
// dropped with a warning rather than blocking an evaluation.
type Queue struct {
	events chan Event
	logger *zap.Logger
}

// NewQueue creates an audit queue with the given buffer size.
func NewQueue(size int, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		events: make(chan Event, size),
		logger: logger,
	}
}

// Enqueue submits an event without blocking. Returns false when the event
// was dropped under backpressure.
func (q *Queue) Enqueue(e Event) bool {
	select {
	case q.events <- e:
		return true
	default:
		metrics.AuditDropped.Inc()
		q.logger.Warn("Audit queue full, dropping event",
			zap.String("event_id", e.ID),
			zap.Int64("comment_id", e.CommentID))
		return false
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is
// still buffered.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info("Audit worker started.")
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-q.events:
					q.emit(e)
				default:
					q.logger.Info("Audit worker stopped.")
					return
				}
			}
		case e := <-q.events:
			q.emit(e)
		}
	}
}

func (q *Queue) emit(e Event) {
	q.logger.Info("audit",
		zap.String("event_id", e.ID),
		zap.Int64("comment_id", e.CommentID),
		zap.Int64("assessment_id", e.AssessmentID),
		zap.String("decision", string(e.Decision)),
		zap.String("layer", e.Layer),
		zap.Time("at", e.At))
}
