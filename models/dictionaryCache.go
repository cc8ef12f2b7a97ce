package models

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const dictionaryCacheKey = "dictionaries:snapshot"

// DictionaryCache serves the dictionary snapshot from memory, then Redis, then MySQL.
// Concurrent misses share one load.
type DictionaryCache struct {
	TTL    time.Duration
	Loader func(ctx context.Context) (*DictionarySnapshot, error)

	mu    sync.RWMutex
	snap  *DictionarySnapshot
	group singleflight.Group
}

func NewDictionaryCache(db *gorm.DB, ttl time.Duration) *DictionaryCache {
	return &DictionaryCache{
		TTL: ttl,
		Loader: func(ctx context.Context) (*DictionarySnapshot, error) {
			return LoadDictionaries(ctx, db)
		},
	}
}

func (c *DictionaryCache) Get(ctx context.Context) (*DictionarySnapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	v, err, _ := c.group.Do(dictionaryCacheKey, func() (interface{}, error) {
		var cached DictionarySnapshot
		found, err := config.GetRedisObject(ctx, dictionaryCacheKey, &cached)
		if err != nil {
			config.GetLogger().WithField("field", "DictionaryCache").Warn("redis read failed; loading from database: " + err.Error())
		}
		loaded := &cached
		if !found || err != nil {
			loaded, err = c.Loader(ctx)
			if err != nil {
				return nil, err
			}
			if err := config.SetRedisObject(ctx, dictionaryCacheKey, loaded, c.TTL); err != nil {
				config.GetLogger().WithField("field", "DictionaryCache").Warn("redis write failed: " + err.Error())
			}
		}

		c.mu.Lock()
		c.snap = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DictionarySnapshot), nil
}

// Invalidate drops the in-memory and Redis copies so the next Get reloads.
func (c *DictionaryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
	return config.RemoveRedisKey(ctx, dictionaryCacheKey)
}

// LoadDictionaries reads all three dictionaries ordered by id.
func LoadDictionaries(ctx context.Context, db *gorm.DB) (*DictionarySnapshot, error) {
	snap := &DictionarySnapshot{}
	db = db.WithContext(ctx)
	if err := db.Order("id").Find(&snap.Departments).Error; err != nil {
		return nil, err
	}
	if err := db.Order("id").Find(&snap.Operations).Error; err != nil {
		return nil, err
	}
	if err := db.Order("id").Find(&snap.Crops).Error; err != nil {
		return nil, err
	}
	return snap, nil
}
