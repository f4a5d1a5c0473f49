package tracequeue

// TraceArchiveJob archives one stored trace.
type TraceArchiveJob struct {
	Digest string `json:"digest"`
}

// Kind returns the job type identifier for River
func (TraceArchiveJob) Kind() string { return "trace_archive" }

// QueueName is the dedicated queue for archive jobs.
const QueueName = "trace"
