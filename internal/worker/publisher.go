package worker

import (
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
)

// Publisher enqueues ingestion tasks.
type Publisher struct {
	producer *nsq.Producer
}

func NewPublisher(producer *nsq.Producer) *Publisher {
	return &Publisher{producer: producer}
}

func (p *Publisher) PublishTask(payload IngestTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return p.producer.Publish(TopicIngestTask, body)
}
