package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const lockPrefix = "lock:"

// Release only our own lock; a lock that expired and was re-acquired belongs to someone else.
const unlockScript = `if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end return 0`

// KeyLocker hands out short-lived mutual exclusion per key, via Redis SETNX when
// available and in-process otherwise.
type KeyLocker struct{}

// TryLock returns a release token when the lock was acquired.
func (KeyLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	if rc := GetRedis(); rc != nil {
		ok, err := rc.SetNX(ctx, lockPrefix+key, token, ttl).Result()
		if err != nil {
			return "", false, err
		}
		return token, ok, nil
	}
	return token, localStore.setNX(lockPrefix+key, token, ttl), nil
}

// Unlock releases a lock acquired with token.
func (KeyLocker) Unlock(ctx context.Context, key, token string) error {
	if rc := GetRedis(); rc != nil {
		return rc.Eval(ctx, unlockScript, []string{lockPrefix + key}, token).Err()
	}
	localStore.delIf(lockPrefix+key, token)
	return nil
}
