package utils

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const checkInCodePrefix = "checkin:code:"

// CheckInCode is the rotating token shown (as a QR code) at the office; staff submit it with a check-in.
type CheckInCode struct {
	CompanyID string    `json:"company_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckInCodes stores one active code per company.
type CheckInCodes struct{}

// Rotate replaces the company's active code.
func (CheckInCodes) Rotate(ctx context.Context, companyID string, ttl time.Duration) (CheckInCode, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	code := CheckInCode{
		CompanyID: companyID,
		Code:      strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}
	b, err := json.Marshal(code)
	if err != nil {
		return CheckInCode{}, err
	}
	if rc := GetRedis(); rc != nil {
		if err := rc.Set(ctx, checkInCodePrefix+companyID, b, ttl).Err(); err != nil {
			return CheckInCode{}, err
		}
		return code, nil
	}
	localStore.set(checkInCodePrefix+companyID, string(b), ttl)
	return code, nil
}

// Current returns the active code, if any.
func (CheckInCodes) Current(ctx context.Context, companyID string) (CheckInCode, bool, error) {
	var raw string
	if rc := GetRedis(); rc != nil {
		v, err := rc.Get(ctx, checkInCodePrefix+companyID).Result()
		if errors.Is(err, redis.Nil) {
			return CheckInCode{}, false, nil
		}
		if err != nil {
			return CheckInCode{}, false, err
		}
		raw = v
	} else {
		v, ok := localStore.get(checkInCodePrefix + companyID)
		if !ok {
			return CheckInCode{}, false, nil
		}
		raw = v
	}
	var code CheckInCode
	if err := json.Unmarshal([]byte(raw), &code); err != nil {
		return CheckInCode{}, false, err
	}
	return code, true, nil
}

// Verify compares a submitted code with the active one, case-insensitively.
func (c CheckInCodes) Verify(ctx context.Context, companyID, submitted string) (bool, error) {
	submitted = strings.ToUpper(strings.TrimSpace(submitted))
	if submitted == "" {
		return false, nil
	}
	active, ok, err := c.Current(ctx, companyID)
	if err != nil || !ok {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(active.Code), []byte(submitted)) == 1, nil
}
