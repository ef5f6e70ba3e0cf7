package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
)

type doctorReader interface {
	GetDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
}

type treatmentReader interface {
	GetTreatment(ctx context.Context, id primitive.ObjectID) (*models.Treatment, error)
}

// ReferenceCache is a read-through Redis cache in front of the doctor and
// treatment repositories. Redis failures fall back to the repository.
// Appointments never go through it.
type ReferenceCache struct {
	rdb        *redis.Client
	ttl        time.Duration
	doctors    doctorReader
	treatments treatmentReader
	logger     *zap.Logger
}

func NewReferenceCache(rdb *redis.Client, ttl time.Duration, doctors doctorReader, treatments treatmentReader, logger *zap.Logger) *ReferenceCache {
	return &ReferenceCache{
		rdb:        rdb,
		ttl:        ttl,
		doctors:    doctors,
		treatments: treatments,
		logger:     logger,
	}
}

func (c *ReferenceCache) GetDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	key := "doctor:" + id.Hex()
	var doctor models.Doctor
	if c.get(ctx, key, &doctor) {
		return &doctor, nil
	}

	d, err := c.doctors.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, d)
	return d, nil
}

func (c *ReferenceCache) GetTreatment(ctx context.Context, id primitive.ObjectID) (*models.Treatment, error) {
	key := "treatment:" + id.Hex()
	var treatment models.Treatment
	if c.get(ctx, key, &treatment) {
		return &treatment, nil
	}

	t, err := c.treatments.GetTreatment(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, t)
	return t, nil
}

func (c *ReferenceCache) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		c.logger.Warn("reference cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *ReferenceCache) set(ctx context.Context, key string, v interface{}) {
	raw, err := bson.Marshal(v)
	if err != nil {
		c.logger.Warn("reference cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
}
