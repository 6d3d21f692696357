package models

// RawEmail is one unseen message captured from the mailbox, in the shape
// it travels through the work queue.
type RawEmail struct {
	UID     string `json:"uid"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
	Body    string `json:"body"`
	TraceID string `json:"trace_id"`
}

// QueueItemVersion is the current queue envelope schema version.
const QueueItemVersion = 1

// QueueItem is the versioned envelope a RawEmail is serialized into on the
// work queue. Attempts and LastError track processing failures so poisoned
// items end up on the dead-letter list instead of being retried forever.
type QueueItem struct {
	Version   int      `json:"version"`
	Attempts  int      `json:"attempts"`
	LastError string   `json:"last_error,omitempty"`
	Email     RawEmail `json:"email"`
}
