package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

var _ trust.PoolMirror = (*PoolMirror)(nil)

// PoolMirror keeps the trust pool in a single hash: field = host, value =
// JSON {level, vtime}.
type PoolMirror struct {
	client redis.Cmdable
	key    string
	log    *zap.Logger
}

func NewPoolMirror(ctx context.Context, cfg Config, log *zap.Logger) (*PoolMirror, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Addr), zap.String("key", cfg.Key))
	return newPoolMirror(client, cfg.Key, log), client, nil
}

func newPoolMirror(c redis.Cmdable, key string, log *zap.Logger) *PoolMirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &PoolMirror{client: c, key: key, log: log.With(zap.String("component", "redis.pool_mirror"))}
}

type entryJSON struct {
	Level string    `json:"level"`
	VTime time.Time `json:"vtime"`
}

func encodeEntry(e trust.Entry) ([]byte, error) {
	return json.Marshal(entryJSON{Level: string(e.Level), VTime: e.VTime.UTC()})
}

func decodeEntry(host string, raw string) (trust.Entry, error) {
	var v entryJSON
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return trust.Entry{}, fmt.Errorf("decode pool entry %q: %w", host, err)
	}
	return trust.Entry{Host: host, Level: trust.Level(v.Level), VTime: v.VTime}, nil
}

func (m *PoolMirror) Put(ctx context.Context, e trust.Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return m.client.HSet(ctx, m.key, e.Host, data).Err()
}

// Replace swaps the whole hash atomically.
func (m *PoolMirror) Replace(ctx context.Context, entries []trust.Entry) error {
	values := make([]any, 0, 2*len(entries))
	for _, e := range entries {
		data, err := encodeEntry(e)
		if err != nil {
			return err
		}
		values = append(values, e.Host, data)
	}
	_, err := m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, m.key)
		if len(values) > 0 {
			p.HSet(ctx, m.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace pool mirror: %w", err)
	}
	m.log.Debug("pool mirror replaced", zap.Int("entries", len(entries)))
	return nil
}

// Load reads the mirrored pool back, skipping fields that do not decode.
func (m *PoolMirror) Load(ctx context.Context) (map[string]trust.Entry, error) {
	raw, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load pool mirror: %w", err)
	}
	out := make(map[string]trust.Entry, len(raw))
	for host, v := range raw {
		e, err := decodeEntry(host, v)
		if err != nil {
			m.log.Warn("skip pool entry", zap.Error(err))
			continue
		}
		out[host] = e
	}
	return out, nil
}
