package scheduler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	kafkax "github.com/NordCoder/Trustwatch/internal/repository/kafka"
)

const (
	NodeJoined = "joined"
	NodeLeft   = "left"
)

type NodeEvent struct {
	Host string
	Kind string
}

// Controller reacts to node membership events: the pool is reseeded and a
// node that joins is verified right away by every enabled check.
type Controller struct {
	Log *zap.Logger
	Sub *kafkax.Consumer
	UC  *Usecase
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.StructHandler(func(ctx context.Context, _ []byte, msg *structpb.Struct) error {
		ev := NodeEvent{
			Host: msg.GetFields()["host"].GetStringValue(),
			Kind: strings.ToLower(msg.GetFields()["event"].GetStringValue()),
		}
		c.Log.Debug("node event", zap.String("host", ev.Host), zap.String("event", ev.Kind))
		return c.HandleNodeEvent(ctx, ev)
	})
	return c.Sub.Consume(ctx, handler)
}

func (c *Controller) HandleNodeEvent(ctx context.Context, ev NodeEvent) error {
	if ev.Host == "" {
		c.Log.Warn("node event without host", zap.String("event", ev.Kind))
		return nil
	}
	switch ev.Kind {
	case NodeJoined, NodeLeft:
	default:
		c.Log.Warn("unsupported node event", zap.String("event", ev.Kind))
		return nil
	}

	if _, _, err := c.UC.ReseedNodes(ctx); err != nil {
		return fmt.Errorf("reseed nodes: %w", err)
	}
	if ev.Kind == NodeLeft {
		return nil
	}

	for _, def := range c.UC.LoadedChecks() {
		if !def.Enabled {
			continue
		}
		res, err := c.UC.RunProbeForNodes(ctx, def.Name, []string{ev.Host})
		if err != nil {
			c.Log.Warn("verify joined node", zap.String("check", def.Name), zap.String("host", ev.Host), zap.Error(err))
			continue
		}
		for _, r := range res {
			c.Log.Info("joined node verified",
				zap.String("check", r.CheckName), zap.String("host", r.Host), zap.String("status", r.Status))
		}
	}
	return nil
}
