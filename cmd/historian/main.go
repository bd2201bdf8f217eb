// cmd/historian/main.go is an asynchronous historian service that pops
// finished-match records from a Redis queue and persists them to
// PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ndquoc/pairmatch/internal/cache"
	"github.com/ndquoc/pairmatch/internal/database"
	"github.com/ndquoc/pairmatch/internal/models"
)

// matchSink is where popped records end up; the database in production.
type matchSink interface {
	InsertMatchHistory(ctx context.Context, rec models.MatchRecord) error
}

// HistorianService encapsulates the Redis and DB logic for archiving
// finished matches.
type HistorianService struct {
	log         *logrus.Logger
	redisClient *redis.Client
	store       matchSink
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []models.MatchRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment
// variables or defaults.
func NewHistorianService(logger *logrus.Logger) *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   getEnvInt("REDIS_DB", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		log:         logger,
		redisClient: rdb,
		queueName:   getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]models.MatchRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and consumes the queue until Stop is
// called. It returns only after the final batch has been flushed.
func (hs *HistorianService) Run() {
	store, err := database.Connect(hs.ctx)
	if err != nil {
		hs.log.Fatalf("historian cannot start without a database: %v", err)
	}
	hs.store = store
	defer store.Close()

	hs.log.Info("pairmatch-historian service started.")
	hs.readRedisLoop()
	hs.log.Info("pairmatch-historian shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve match records from
// the Redis queue, accumulating them in a batch that is flushed on size
// or on a timer. On cancellation the remaining batch is flushed before
// returning.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			hs.flushBatchToDB()
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, hs.queueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || hs.ctx.Err() != nil {
					continue
				}
				hs.log.Errorf("BLPop: %v", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var rec models.MatchRecord
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				hs.log.Warnf("invalid match record: %v", err)
				continue
			}

			hs.appendToBatch(rec)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the
// threshold is reached.
func (hs *HistorianService) appendToBatch(rec models.MatchRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, rec)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchLocked()
	}
}

func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchLocked()
}

// flushBatchLocked writes the current batch to the database. Records
// that fail to insert are logged and dropped rather than re-queued;
// the queue is best-effort history, not a ledger.
func (hs *HistorianService) flushBatchLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]models.MatchRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	flushed := 0
	for _, rec := range batchCopy {
		if err := hs.store.InsertMatchHistory(ctx, rec); err != nil {
			hs.log.Errorf("insert match record: %v", err)
			continue
		}
		flushed++
	}
	if flushed > 0 {
		hs.log.Infof("Flushed %d match records to DB.", flushed)
	}
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	logger := logrus.New()

	hs := NewHistorianService(logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		hs.Stop()
	}()

	// Returns after the shutdown flush, so no batch is dropped.
	hs.Run()
	logger.Info("Historian shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
