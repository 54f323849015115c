package redishost

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ggoodman/mcp-gateway/sessions"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Config for Redis-backed SessionHost. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"SESSIONS_KEY_PREFIX,default=mcp-gateway:sessions:"`
	// MaxLen approximately caps each session stream. ENV: SESSIONS_STREAM_MAXLEN
	MaxLen int64 `env:"SESSIONS_STREAM_MAXLEN,default=1024"`
	// TTL expires idle streams left behind by crashed processes. ENV: SESSIONS_STREAM_TTL
	TTL time.Duration `env:"SESSIONS_STREAM_TTL,default=24h"`
}

type Host struct {
	client    *redis.Client
	keyPrefix string
	maxLen    int64
	ttl       time.Duration
	block     time.Duration
}

func New(cfg Config) (*Host, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	h := &Host{client: cl, keyPrefix: cfg.KeyPrefix, maxLen: cfg.MaxLen, ttl: cfg.TTL, block: 500 * time.Millisecond}
	if h.keyPrefix == "" {
		h.keyPrefix = "mcp-gateway:sessions:"
	}
	if h.maxLen <= 0 {
		h.maxLen = 1024
	}
	if h.ttl <= 0 {
		h.ttl = 24 * time.Hour
	}
	return h, nil
}

// NewFromEnv builds a Host using envdecode to populate Config.
func NewFromEnv() (*Host, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("redishost config: %w", err)
	}
	return New(cfg)
}

// Close closes the Redis client.
func (h *Host) Close() error { return h.client.Close() }

func (h *Host) streamKey(sessionID string) string { return h.keyPrefix + "stream:" + sessionID }
func (h *Host) closedKey(sessionID string) string { return h.keyPrefix + "closed:" + sessionID }

var streamID = regexp.MustCompile(`^\d+-\d+$`)

func (h *Host) PublishSession(ctx context.Context, sessionID string, data []byte) (string, error) {
	gone, err := h.client.Exists(ctx, h.closedKey(sessionID)).Result()
	if err != nil {
		return "", err
	}
	if gone == 1 {
		return "", sessions.ErrSessionClosed
	}
	key := h.streamKey(sessionID)
	var add *redis.StringCmd
	_, err = h.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		add = p.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			MaxLen: h.maxLen,
			Approx: true,
			Values: map[string]interface{}{"d": data},
		})
		p.Expire(ctx, key, h.ttl)
		return nil
	})
	if err != nil {
		return "", err
	}
	return add.Val(), nil
}

// resolveStart returns the stream id after which delivery begins.
func (h *Host) resolveStart(ctx context.Context, key, lastEventID string) (string, error) {
	if lastEventID == sessions.StreamStart {
		return "0-0", nil
	}
	if lastEventID == "" {
		last, err := h.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
		if err != nil {
			return "", err
		}
		if len(last) == 0 {
			return "0-0", nil
		}
		return last[0].ID, nil
	}
	if !streamID.MatchString(lastEventID) {
		return "", sessions.ErrUnknownEventID
	}
	found, err := h.client.XRangeN(ctx, key, lastEventID, lastEventID, 1).Result()
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", sessions.ErrUnknownEventID
	}
	return lastEventID, nil
}

func (h *Host) SubscribeSession(ctx context.Context, sessionID string, lastEventID string, handler sessions.MessageHandlerFunction) error {
	key := h.streamKey(sessionID)
	start, err := h.resolveStart(ctx, key, lastEventID)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := h.client.XRead(ctx, &redis.XReadArgs{Streams: []string{key, start}, Count: 64, Block: h.block}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				gone, err := h.client.Exists(ctx, h.closedKey(sessionID)).Result()
				if err != nil {
					return err
				}
				if gone == 1 {
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if len(res) == 0 {
			continue
		}
		for _, m := range res[0].Messages {
			start = m.ID
			var payload []byte
			switch v := m.Values["d"].(type) {
			case string:
				payload = []byte(v)
			case []byte:
				payload = v
			default:
				payload = []byte(fmt.Sprintf("%v", v))
			}
			if err := handler(ctx, m.ID, payload); err != nil {
				return err
			}
		}
	}
}

// CleanupSession deletes the stream and leaves a short-lived marker so that
// subscribers on any process end cleanly.
func (h *Host) CleanupSession(ctx context.Context, sessionID string) error {
	c := context.WithoutCancel(ctx)
	_, err := h.client.TxPipelined(c, func(p redis.Pipeliner) error {
		p.Del(c, h.streamKey(sessionID))
		p.Set(c, h.closedKey(sessionID), "1", time.Hour)
		return nil
	})
	return err
}

var _ sessions.SessionHost = (*Host)(nil)
