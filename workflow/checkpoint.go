package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultCheckpointBucket is the KV bucket holding workflow state.
const DefaultCheckpointBucket = "CONDUCTOR_WORKFLOWS"

// checkpointHistory keeps the last few revisions per workflow for
// debugging stuck runs.
const checkpointHistory = 5

// Checkpointer persists workflow state after every committed stage
// transition so workflows survive a process restart.
type Checkpointer interface {
	Save(ctx context.Context, st *State) error
	Load(ctx context.Context, id string) (*State, error)
	List(ctx context.Context) ([]*State, error)
}

// KVCheckpointer stores workflow state as JSON in a JetStream KV
// bucket, one key per workflow ID.
type KVCheckpointer struct {
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// NewKVCheckpointer opens or creates the checkpoint bucket.
func NewKVCheckpointer(ctx context.Context, js jetstream.JetStream, bucket string, logger *slog.Logger) (*KVCheckpointer, error) {
	if bucket == "" {
		bucket = DefaultCheckpointBucket
	}
	if logger == nil {
		logger = slog.Default()
	}

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "Workflow state checkpoints",
			History:     checkpointHistory,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint bucket %s: %w", bucket, err)
	}

	return &KVCheckpointer{kv: kv, logger: logger}, nil
}

// Save writes the state under its workflow ID.
func (c *KVCheckpointer) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", st.ID, err)
	}
	if _, err := c.kv.Put(ctx, st.ID, data); err != nil {
		return fmt.Errorf("put workflow %s: %w", st.ID, err)
	}
	return nil
}

// Load returns the latest checkpoint for id, or ErrNotFound.
func (c *KVCheckpointer) Load(ctx context.Context, id string) (*State, error) {
	entry, err := c.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}

	var st State
	if err := json.Unmarshal(entry.Value(), &st); err != nil {
		return nil, fmt.Errorf("unmarshal workflow %s: %w", id, err)
	}
	return &st, nil
}

// List returns the latest checkpoint of every workflow in the bucket.
// Corrupt entries are skipped with a warning rather than failing the
// whole restore.
func (c *KVCheckpointer) List(ctx context.Context) ([]*State, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list checkpoint keys: %w", err)
	}

	out := make([]*State, 0, len(keys))
	for _, key := range keys {
		st, err := c.Load(ctx, key)
		if err != nil {
			c.logger.Warn("Skipping unreadable checkpoint", "key", key, "error", err)
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
