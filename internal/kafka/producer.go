package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ms-issuance/internal/models"
)

const (
	TopicTicketScanned = "ticketly.tickets.scanned"
	TopicJobCompleted  = "ticketly.jobs.completed"
)

type Producer struct {
	Writer *kafka.Writer

	// Topic overrides; the package defaults apply when empty.
	TopicScanned string
	TopicJobs    string
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{
		Writer:       writer,
		TopicScanned: TopicTicketScanned,
		TopicJobs:    TopicJobCompleted,
	}
}

// Publish sends one message to the given topic.
func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// PublishTicketScanned streams an accepted scan for downstream dashboards.
func (p *Producer) PublishTicketScanned(ticket models.Ticket) error {
	msgBytes, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return p.Publish(p.TopicScanned, ticket.Code, msgBytes)
}

// PublishJobCompleted streams a terminal batch job with its final counters.
func (p *Producer) PublishJobCompleted(job models.BatchJob) error {
	msgBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.Publish(p.TopicJobs, job.ID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
