package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"support-mail-ingest/internal/logging"
	"support-mail-ingest/internal/models"
)

// Queue is the consumer side of the work queue.
type Queue interface {
	DequeueWait(ctx context.Context, timeout time.Duration) (*models.QueueItem, error)
	Requeue(ctx context.Context, item *models.QueueItem) error
	DeadLetter(ctx context.Context, item *models.QueueItem) error
}

// Extractor turns a prompt into generated text.
type Extractor interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// TicketCreator persists an extracted ticket and returns its generated id.
type TicketCreator interface {
	Create(ctx context.Context, ticket *models.ExtractedTicket) (string, error)
}

// Worker is the long-lived background loop that drains the work queue,
// runs each raw email through the extraction backend and forwards the
// structured ticket to persistence.
type Worker struct {
	queue     Queue
	extractor Extractor
	tickets   TicketCreator

	cooldown    time.Duration
	popTimeout  time.Duration
	maxAttempts int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Worker; it does not start processing until Start is called.
func New(q Queue, e Extractor, t TicketCreator, cfg models.WorkerConfig) *Worker {
	return &Worker{
		queue:       q,
		extractor:   e,
		tickets:     t,
		cooldown:    cfg.Cooldown,
		popTimeout:  cfg.PopTimeout,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Start spawns the background loop. Calling Start on a running worker is
// a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
	logging.Log.Info("Extraction worker started")
}

// Stop cancels the loop and waits for the in-flight iteration to unwind.
// Calling Stop on a stopped worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logging.Log.Info("Extraction worker stopped")
}

func (w *Worker) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		item, err := w.queue.DequeueWait(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Log.Errorf("Dequeue error: %v", err)
			w.wait(ctx)
			continue
		}
		if item == nil {
			continue
		}

		if err := w.process(ctx, item); err != nil {
			w.fail(item, err)
			w.wait(ctx)
		}
	}
}

// process runs one queue item through extraction and persistence.
func (w *Worker) process(ctx context.Context, item *models.QueueItem) error {
	payload, err := json.Marshal(item.Email)
	if err != nil {
		return fmt.Errorf("serializing email for prompt: %w", err)
	}

	response, err := w.extractor.Chat(ctx, systemPrompt+"\n\n"+string(payload))
	if err != nil {
		return fmt.Errorf("extraction call: %w", err)
	}

	ticket, err := models.ParseExtractedTicket([]byte(response))
	if err != nil {
		return fmt.Errorf("extraction response: %w", err)
	}

	id, err := w.tickets.Create(ctx, ticket)
	if err != nil {
		return fmt.Errorf("creating ticket: %w", err)
	}

	logging.Log.WithField("trace_id", item.Email.TraceID).
		Infof("Email UID %s processed, ticket %s created", item.Email.UID, id)
	return nil
}

// fail records the error on the envelope and routes the item back to the
// queue, or to the dead-letter list once its retry budget is spent.
// A background context is used so an item still lands somewhere when the
// failure was the worker shutting down mid-call.
func (w *Worker) fail(item *models.QueueItem, procErr error) {
	locallog := logging.Log.WithField("trace_id", item.Email.TraceID)
	locallog.Errorf("Error processing email UID %s: %v", item.Email.UID, procErr)

	item.Attempts++
	item.LastError = procErr.Error()

	ctx := context.Background()
	if item.Attempts >= w.maxAttempts {
		if err := w.queue.DeadLetter(ctx, item); err != nil {
			locallog.Errorf("Error dead-lettering email UID %s: %v", item.Email.UID, err)
			return
		}
		locallog.Warnf("Email UID %s moved to dead letter after %d attempts", item.Email.UID, item.Attempts)
		return
	}
	if err := w.queue.Requeue(ctx, item); err != nil {
		locallog.Errorf("Error requeueing email UID %s: %v", item.Email.UID, err)
	}
}

// wait pauses for the failure cooldown, returning early on cancellation.
func (w *Worker) wait(ctx context.Context) {
	t := time.NewTimer(w.cooldown)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
