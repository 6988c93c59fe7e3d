package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ObjectRemover is the part of the object store the worker needs.
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

type OrphanSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Processor struct {
	objects ObjectRemover
	sweeper OrphanSweeper
	logger  zerolog.Logger
}

func NewProcessor(objects ObjectRemover, sweeper OrphanSweeper, logger zerolog.Logger) *Processor {
	return &Processor{
		objects: objects,
		sweeper: sweeper,
		logger:  logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var task Task
	if err := decodePayload(msg.Values, &task); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch task.Type {
	case TypeStorageRemove:
		return p.handleRemove(ctx, task)
	case TypeStoragePurge:
		return p.handlePurge(ctx, task)
	case TypeIdentitySweep:
		return p.handleSweep(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *Task) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleRemove(ctx context.Context, task Task) error {
	if task.ObjectKey == "" {
		return errors.New("storage.remove: missing objectKey")
	}
	if err := p.objects.Remove(ctx, task.ObjectKey); err != nil {
		return err
	}
	p.logger.Info().Str("object_key", task.ObjectKey).Msg("orphaned object removed")
	return nil
}

func (p *Processor) handlePurge(ctx context.Context, task Task) error {
	// An empty prefix would purge the whole bucket.
	if task.Prefix == "" || task.Prefix == "/" {
		return errors.New("storage.purge: missing prefix")
	}
	removed, err := p.objects.RemovePrefix(ctx, task.Prefix)
	if err != nil {
		return err
	}
	p.logger.Info().Str("prefix", task.Prefix).Int("removed", removed).Msg("prefix purged")
	return nil
}

func (p *Processor) handleSweep(ctx context.Context) error {
	removed, err := p.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	p.logger.Info().Int("removed", removed).Msg("orphan identities swept")
	return nil
}
