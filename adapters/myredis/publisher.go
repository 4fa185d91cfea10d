package myredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mytestbed/domain"

	"github.com/go-redis/redis/v8"
)

const (
	samplesKeySuffix = "samples"
	summaryKeySuffix = "summary"

	opTimeout = 2 * time.Second
)

type publisher struct {
	client redis.UniversalClient
	prefix string
}

// NewPublisher creates a ResultSink that publishes to Redis: samples are
// appended to the list {prefix}:samples, the summary is written to
// {prefix}:summary. Callers scope prefix per run.
func NewPublisher(client redis.UniversalClient, prefix string) *publisher {
	return &publisher{
		client: client,
		prefix: prefix,
	}
}

func (p *publisher) RecordSample(s domain.Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := p.client.RPush(ctx, p.key(samplesKeySuffix), data).Err(); err != nil {
		return fmt.Errorf("failed to push sample to redis: %w", err)
	}
	return nil
}

func (p *publisher) RecordSummary(sum domain.Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := p.client.Set(ctx, p.key(summaryKeySuffix), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write summary to redis: %w", err)
	}
	return nil
}

func (p *publisher) Close() error {
	return p.client.Close()
}

func (p *publisher) key(suffix string) string {
	return p.prefix + ":" + suffix
}
