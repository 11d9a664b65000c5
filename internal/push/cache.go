package push

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/store"
)

// Persisted cache keys.
const (
	keyDismissed      = "dismissed"
	keySubscribed     = "subscribed"
	keyKeyFingerprint = "vapidKeyFingerprint"
	keyDeviceID       = "deviceId"
)

// KV is the slice of the store the cache lives in. store.Store satisfies it.
type KV interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// Cache persists model.PushCache in a key-value store.
type Cache struct {
	kv KV
}

// NewCache creates a Cache over kv.
func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Load reads the cache. Missing keys read as their zero value.
func (c *Cache) Load(ctx context.Context) (model.PushCache, error) {
	var pc model.PushCache
	var err error
	if pc.Dismissed, err = c.getBool(ctx, keyDismissed); err != nil {
		return pc, err
	}
	if pc.Subscribed, err = c.getBool(ctx, keySubscribed); err != nil {
		return pc, err
	}
	if pc.KeyFingerprint, err = c.get(ctx, keyKeyFingerprint); err != nil {
		return pc, err
	}
	return pc, nil
}

// Save writes every field of pc. False flags and an empty fingerprint are
// stored as absent keys.
func (c *Cache) Save(ctx context.Context, pc model.PushCache) error {
	if err := c.setBool(ctx, keyDismissed, pc.Dismissed); err != nil {
		return err
	}
	if err := c.setBool(ctx, keySubscribed, pc.Subscribed); err != nil {
		return err
	}
	if pc.KeyFingerprint == "" {
		return c.del(ctx, keyKeyFingerprint)
	}
	if err := c.kv.SetValue(ctx, keyKeyFingerprint, pc.KeyFingerprint); err != nil {
		return fmt.Errorf("saving push cache: %w", err)
	}
	return nil
}

// DeviceID returns the persisted device id, creating one on first use.
func (c *Cache) DeviceID(ctx context.Context) (string, error) {
	id, err := c.get(ctx, keyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := c.kv.SetValue(ctx, keyDeviceID, id); err != nil {
		return "", fmt.Errorf("saving device id: %w", err)
	}
	return id, nil
}

func (c *Cache) get(ctx context.Context, key string) (string, error) {
	v, err := c.kv.GetValue(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading push cache %s: %w", key, err)
	}
	return v, nil
}

func (c *Cache) getBool(ctx context.Context, key string) (bool, error) {
	v, err := c.get(ctx, key)
	if err != nil || v == "" {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("loading push cache %s: %w", key, err)
	}
	return b, nil
}

func (c *Cache) setBool(ctx context.Context, key string, b bool) error {
	if !b {
		return c.del(ctx, key)
	}
	if err := c.kv.SetValue(ctx, key, "true"); err != nil {
		return fmt.Errorf("saving push cache %s: %w", key, err)
	}
	return nil
}

func (c *Cache) del(ctx context.Context, key string) error {
	err := c.kv.DeleteValue(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clearing push cache %s: %w", key, err)
	}
	return nil
}
