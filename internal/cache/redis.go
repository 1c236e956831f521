package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

const (
	keyBalancePrefix  = "wallet:balance:"
	keyRoundPrefix    = "round:"
	snapshotRetention = 1 * time.Hour
)

type Service interface {
	Health() map[string]string
	Close() error

	GetBalance(ctx context.Context, userID string) (float64, error)
	SetBalance(ctx context.Context, userID string, amount float64) error
	AdjustBalance(ctx context.Context, userID string, delta float64) (float64, error)
	DebitBalance(ctx context.Context, userID string, amount float64) (float64, bool, error)
	StoreRoundSnapshot(ctx context.Context, kind string, roundID string, snapshot interface{}) error
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	cacheInstance *service
)

func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		log.Println("[CACHE] Running without Redis cache")
		return nil
	}

	log.Println("[CACHE] Redis connected successfully")

	cacheInstance = &service{
		client: client,
	}

	return cacheInstance
}

// GetBalance reads a user's demo wallet balance. Missing users read as zero.
func (s *service) GetBalance(ctx context.Context, userID string) (float64, error) {
	balance, err := s.client.Get(ctx, keyBalancePrefix+userID).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	return balance, err
}

func (s *service) SetBalance(ctx context.Context, userID string, amount float64) error {
	return s.client.Set(ctx, keyBalancePrefix+userID, amount, 0).Err()
}

// AdjustBalance atomically applies a delta (negative to debit) and returns
// the new balance.
func (s *service) AdjustBalance(ctx context.Context, userID string, delta float64) (float64, error) {
	return s.client.IncrByFloat(ctx, keyBalancePrefix+userID, delta).Result()
}

// Balance check and withdrawal in one server-side step, so two concurrent
// debits can never both pass the check and drive a wallet negative. Balances
// travel as strings to keep float precision across the Lua boundary.
var debitScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
	return {tostring(balance), 0}
end
balance = balance - amount
redis.call('SET', KEYS[1], tostring(balance))
return {tostring(balance), 1}
`)

// DebitBalance withdraws amount only if the balance covers it. Returns the
// resulting balance and whether the debit was applied.
func (s *service) DebitBalance(ctx context.Context, userID string, amount float64) (float64, bool, error) {
	res, err := debitScript.Run(ctx, s.client, []string{keyBalancePrefix + userID}, amount).Result()
	if err != nil {
		return 0, false, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, false, fmt.Errorf("unexpected debit reply: %v", res)
	}
	balance, err := strconv.ParseFloat(fmt.Sprintf("%v", vals[0]), 64)
	if err != nil {
		return 0, false, err
	}
	applied, _ := vals[1].(int64)
	return balance, applied == 1, nil
}

// StoreRoundSnapshot caches a round's public snapshot under its kind and id,
// with a bounded retention.
func (s *service) StoreRoundSnapshot(ctx context.Context, kind string, roundID string, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%s", keyRoundPrefix, kind, roundID)
	return s.client.Set(ctx, key, data, snapshotRetention).Err()
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)
	stats["stale_conns"] = strconv.FormatUint(uint64(poolStats.StaleConns), 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[CACHE] Disconnecting from Redis")
	return s.client.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
