package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/roadside-rescue/internal/models"
)

// RedisGeo implements Geo using Redis GEO commands. The consumer keeps the
// set fresh from the Kafka location stream.
type RedisGeo struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key, ctx: context.Background()}
}

func (r *RedisGeo) Upsert(loc models.MechanicLocation) {
	// GEOADD for position plus a metadata hash
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: loc.Loc.Lng, Latitude: loc.Loc.Lat, Name: loc.MechanicID}).Result()
	_ = r.client.HSet(r.ctx, metaKey(loc.MechanicID), map[string]interface{}{
		"rating":    fmt.Sprintf("%f", loc.Rating),
		"available": strconv.FormatBool(loc.Available),
		"updated":   time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisGeo) Nearby(lat, lng float64, limit int) []models.MechanicLocation {
	res, err := r.client.GeoRadius(r.ctx, r.key, lng, lat, &redis.GeoRadiusQuery{Radius: 50, Unit: "km", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.MechanicLocation, 0, len(res))
	for _, g := range res {
		m := models.MechanicLocation{MechanicID: g.Name}
		m.Loc.Lat = g.Latitude
		m.Loc.Lng = g.Longitude
		if meta, err := r.client.HGetAll(r.ctx, metaKey(g.Name)).Result(); err == nil {
			if v, ok := meta["rating"]; ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					m.Rating = f
				}
			}
			if v, ok := meta["available"]; ok {
				m.Available = v == "true"
			}
		}
		if !m.Available {
			continue
		}
		out = append(out, m)
	}
	return out
}

func metaKey(id string) string { return "mechanic:meta:" + id }
