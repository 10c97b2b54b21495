package worker

// TopicIngestTask carries ingestion requests from the submit client to
// the worker pool.
const TopicIngestTask = "ingest.task"

// ChannelIngest is the consumer channel; every worker joins the same
// channel so NSQ load-balances tasks across them.
const ChannelIngest = "ingest-workers"

type IngestTaskPayload struct {
	JobID   string `json:"job_id"`
	FileID  string `json:"file_id"`
	FileURL string `json:"file_url"`

	CorrelationID string `json:"correlation_id"`
}
