// Package objectstore keeps pipeline text and synthesized audio in NATS
// JetStream object store buckets.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsObjectStore implements the core.ObjectStore interface using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// New binds to bucketName, creating the bucket first when it does not exist.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("mimic3-tts objects for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload saves an object with its metadata, such as the audio format of a
// synthesized WAV.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := n.store.Put(&nats.ObjectMeta{
		Name:     key,
		Metadata: metadata,
	}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Metadata returns the metadata stored with key.
func (n *NatsObjectStore) Metadata(ctx context.Context, key string) (map[string]string, error) {
	info, err := n.store.GetInfo(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get info of object '%s' in bucket '%s': %w", key, n.bucket, err)
	}

	return info.Metadata, nil
}
