package ledger

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// ScanLocks takes a short-lived Redis lock per code in front of the database
// compare-and-set. The database update is the authority; the lock only keeps
// duplicate scans from the same gate hammering the row inside the TTL.
type ScanLocks struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewScanLocks(client *redis.Client, ttl time.Duration) *ScanLocks {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &ScanLocks{Client: client, TTL: ttl}
}

func (l *ScanLocks) Acquire(ctx context.Context, code string) (bool, error) {
	key := "scan_lock:" + code
	return l.Client.SetNX(ctx, key, "1", l.TTL).Result()
}

func (l *ScanLocks) Release(ctx context.Context, code string) {
	key := "scan_lock:" + code
	_, _ = l.Client.Del(ctx, key).Result()
}
