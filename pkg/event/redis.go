package event

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"clob/pkg/ledger"

	"github.com/go-redis/redis/v8"
)

// RecentTrades is the length of the capped recent trades list
const RecentTrades = 100

// RedisCmdable is the subset of redis.Cmdable used by Redis
type RedisCmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// Redis keeps the latest depth snapshot and recent trades of each symbol in redis
// and mirrors them on pub/sub channels. Accept/cancel events are not mirrored.
type Redis struct {
	Rds     RedisCmdable
	Timeout time.Duration
}

func RedisKey(symbol, name string) string {
	return "ome:" + strings.ToLower(symbol) + ":" + name
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	t := r.Timeout
	if t <= 0 {
		t = time.Second
	}
	return context.WithTimeout(context.Background(), t)
}

func (r *Redis) OnOrderAccepted(OrderAccepted)   {}
func (r *Redis) OnOrderCancelled(OrderCancelled) {}

func (r *Redis) OnTrade(v ledger.Trade) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()

	if err = r.Rds.LPush(ctx, RedisKey(v.Symbol, "recent_trades"), b).Err(); err != nil {
		logger.Errorf("redis LPush trade:%d failed with err:%s", v.Seq, err)
		return
	}
	if err = r.Rds.LTrim(ctx, RedisKey(v.Symbol, "recent_trades"), 0, RecentTrades-1).Err(); err != nil {
		logger.Errorf("redis LTrim trades failed with err:%s", err)
	}
	if err = r.Rds.Publish(ctx, RedisKey(v.Symbol, "trades"), b).Err(); err != nil {
		logger.Errorf("redis Publish trade:%d failed with err:%s", v.Seq, err)
	}
}

func (r *Redis) OnDepthChanged(v DepthChanged) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()

	if err = r.Rds.Set(ctx, RedisKey(v.Symbol, "depth"), b, 0).Err(); err != nil {
		logger.Errorf("redis Set depth seq:%d failed with err:%s", v.Seq, err)
		return
	}
	if err = r.Rds.Publish(ctx, RedisKey(v.Symbol, "depth"), b).Err(); err != nil {
		logger.Errorf("redis Publish depth seq:%d failed with err:%s", v.Seq, err)
	}
}
