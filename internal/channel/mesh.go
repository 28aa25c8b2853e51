package channel

import (
	"context"
	"log/slog"

	"beacon/internal/logging"
	"beacon/internal/queue"
)

// MeshAdapter is the declared BLE mesh channel. No transport exists yet, so
// every attempt reports failure and the queue's retry bookkeeping applies as
// for any other dead channel.
//
// TODO: replace with a real transport once the mesh protocol design (peer
// discovery, TTL-bounded relay, duplicate suppression) is specified.
type MeshAdapter struct {
	logger *slog.Logger
}

// NewMeshAdapter constructs the mesh channel stub.
func NewMeshAdapter(logger *slog.Logger) *MeshAdapter {
	return &MeshAdapter{logger: logging.NewComponentLogger(logger, "channel-mesh")}
}

// Name implements queue.Adapter.
func (a *MeshAdapter) Name() queue.Channel { return queue.ChannelMesh }

// Attempt implements queue.Adapter and always fails.
func (a *MeshAdapter) Attempt(_ context.Context, item *queue.Item) bool {
	a.logger.Debug("mesh transport not implemented",
		logging.Int64(logging.FieldItemID, item.ID),
	)
	return false
}
