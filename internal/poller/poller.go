package poller

import (
	"context"
	"fmt"
	"sort"

	imapclient "support-mail-ingest/internal/imap"
	"support-mail-ingest/internal/logging"
	"support-mail-ingest/internal/mailparse"
	"support-mail-ingest/internal/models"
)

// Queue is the slice of the work queue the poller needs: the backpressure
// gate and the producer side.
type Queue interface {
	IsEmpty(ctx context.Context) (bool, error)
	Enqueue(ctx context.Context, email models.RawEmail) error
}

// Poller captures unseen messages from the mailbox and enqueues them for
// extraction. One Poll call is one cycle; the caller schedules cycles on
// a fixed interval.
type Poller struct {
	imapCfg   models.IMAPConfig
	batchSize int
	queue     Queue
	newClient func() imapclient.Client
}

// New creates a Poller for the configured mailbox, producing into q.
func New(cfg *models.Config, q Queue) *Poller {
	return &Poller{
		imapCfg:   cfg.IMAP,
		batchSize: cfg.Poller.BatchSize,
		queue:     q,
		newClient: func() imapclient.Client { return imapclient.NewStandardClient() },
	}
}

// Poll runs one polling cycle: skip while a backlog exists, otherwise
// search the mailbox for unseen messages and enqueue up to batchSize of
// the most recent ones. A single malformed message is logged and skipped,
// never fatal to the batch. Connection and auth failures abort the cycle;
// the next scheduled cycle retries.
func (p *Poller) Poll(ctx context.Context) error {
	empty, err := p.queue.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("checking queue backlog: %w", err)
	}
	if !empty {
		logging.Log.Debug("Work queue not empty, skipping poll cycle")
		return nil
	}

	client := p.newClient()
	if err := client.Connect(p.imapCfg.Addr()); err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Login(p.imapCfg.User, p.imapCfg.Password); err != nil {
		return fmt.Errorf("IMAP login error: %w", err)
	}
	if err := client.SelectMailbox(p.imapCfg.Mailbox); err != nil {
		return fmt.Errorf("mailbox selection error: %w", err)
	}

	uids, err := client.SearchUnseen()
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		logging.Log.Info("No unseen emails")
		return nil
	}

	for _, uid := range selectRecent(uids, p.batchSize) {
		msg, err := client.FetchMessage(uid)
		if err != nil {
			logging.Log.Errorf("Error fetching email UID %d, skipping: %v", uid, err)
			continue
		}

		email, err := mailparse.Parse(msg)
		if err != nil {
			logging.Log.Errorf("Error parsing email UID %d, skipping: %v", uid, err)
			continue
		}

		if err := p.queue.Enqueue(ctx, *email); err != nil {
			return fmt.Errorf("enqueueing email UID %d: %w", uid, err)
		}
		logging.Log.WithField("trace_id", email.TraceID).Infof("Enqueued email UID %s from %s", email.UID, email.From)
	}

	return nil
}

// selectRecent returns at most limit UIDs, highest (most recent) first.
func selectRecent(uids []uint32, limit int) []uint32 {
	sorted := make([]uint32, len(uids))
	copy(sorted, uids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
