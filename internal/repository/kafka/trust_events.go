package kafka

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
	"github.com/NordCoder/Trustwatch/internal/obs/retry"
)

type TrustEventsKafka struct {
	p   *Producer
	pol retry.Policy
}

func NewTrustEventsKafka(p *Producer, pol retry.Policy) *TrustEventsKafka {
	return &TrustEventsKafka{p: p, pol: pol}
}

var _ trust.Events = (*TrustEventsKafka)(nil)

// PublishTrustChanged emits one event keyed by host so a node's transitions
// stay ordered within a partition.
func (e *TrustEventsKafka) PublishTrustChanged(ctx context.Context, c trust.Change) error {
	msg, err := TrustChangeMessage(c)
	if err != nil {
		return err
	}
	return retry.Do(ctx, func() error {
		return e.p.PublishProto(ctx, KeyFromString(c.Host), msg)
	}, e.pol)
}

func TrustChangeMessage(c trust.Change) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"check": c.CheckName,
		"host":  c.Host,
		"old":   string(c.Old),
		"new":   string(c.New),
		"ts":    c.At.UTC().Format(time.RFC3339Nano),
	})
}
