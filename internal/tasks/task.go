package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/AlouiLouai/educ/internal/ids"
)

const (
	TypeStorageRemove = "storage.remove"
	TypeStoragePurge  = "storage.purge"
	TypeIdentitySweep = "identity.sweep"
)

type Task struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	ObjectKey string `json:"objectKey,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
}

func RemoveObject(key string) Task {
	return Task{Type: TypeStorageRemove, ObjectKey: key}
}

func PurgePrefix(prefix string) Task {
	return Task{Type: TypeStoragePurge, Prefix: prefix}
}

func SweepIdentities() Task {
	return Task{Type: TypeIdentitySweep}
}

// Queue appends tasks to the worker stream.
type Queue struct {
	client *redis.Client
	stream string
}

func NewQueue(client *redis.Client, stream string) *Queue {
	return &Queue{client: client, stream: stream}
}

func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	if task.ID == "" {
		task.ID = ids.New()
	}

	values := map[string]any{
		"id":   task.ID,
		"type": task.Type,
	}
	if task.ObjectKey != "" {
		values["objectKey"] = task.ObjectKey
	}
	if task.Prefix != "" {
		values["prefix"] = task.Prefix
	}

	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return nil
}
