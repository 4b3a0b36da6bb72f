// Package redis caches last-known driver positions. Presence is ephemeral
// operational data: it expires on its own and is never part of the ride
// lifecycle's source of truth.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"campuscart/internal/domain/user"
	"campuscart/internal/general/config"
	"campuscart/internal/general/logger"
	"campuscart/internal/ports"
)

const (
	geoKey      = "presence:geo"
	positionKey = "presence:driver:"
	positionTTL = 5 * time.Minute
)

// NewClient connects and verifies the connection.
func NewClient(ctx context.Context, cfg *config.Config, log *logger.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{
		"host": cfg.Redis.Host,
		"db":   cfg.Redis.DB,
	})
	return client, nil
}

// Presence implements ports.PresenceStore on Redis.
type Presence struct {
	client *goredis.Client
}

var _ ports.PresenceStore = (*Presence)(nil)

func NewPresence(client *goredis.Client) *Presence {
	return &Presence{client: client}
}

func (presence *Presence) UpdateLocation(ctx context.Context, pos ports.DriverPosition) error {
	key := positionKey + pos.DriverID

	pipe := presence.client.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &goredis.GeoLocation{
		Name:      pos.DriverID,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
	})
	pipe.HSet(ctx, key, map[string]any{
		"lat": pos.Latitude,
		"lng": pos.Longitude,
		"at":  pos.ReportedAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, positionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: presence update: %v", ports.ErrUnavailable, err)
	}
	return nil
}

func (presence *Presence) Location(ctx context.Context, driverID string) (*ports.DriverPosition, error) {
	fields, err := presence.client.HGetAll(ctx, positionKey+driverID).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: presence read: %v", ports.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, user.ErrNotFound
	}

	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse presence lat: %w", err)
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse presence lng: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"])
	if err != nil {
		return nil, fmt.Errorf("parse presence timestamp: %w", err)
	}

	return &ports.DriverPosition{
		DriverID:   driverID,
		Latitude:   lat,
		Longitude:  lng,
		ReportedAt: at,
	}, nil
}
