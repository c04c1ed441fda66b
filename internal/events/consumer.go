package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/kafka"
)

// Invalidator drops cached analysis results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SubclusterUpdateHandler returns a kafka.MessageHandler that invalidates
// every cached snapshot when a subcluster changes. Any subcluster may appear
// in any cached snapshot, so the whole cache goes.
func SubclusterUpdateHandler(inv Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "subcluster-update-handler")
	return func(ctx context.Context, _ []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[SubclusterUpdated](value)
		if err != nil {
			return err
		}
		if ev.SubclusterID == "" && ev.ClusterID == "" {
			return fmt.Errorf("subcluster update without subcluster or cluster id")
		}
		if err := inv.Invalidate(ctx); err != nil {
			return err
		}
		logger.Info("snapshot cache invalidated",
			"subcluster_id", ev.SubclusterID,
			"cluster_id", ev.ClusterID,
		)
		return nil
	}
}
