package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"

	"github.com/lvlrf/radpanel/internal/config"
)

const (
	keySubmitAccount = "payments:submit:account:%s"
	keyUploadSource  = "uploads:receipt:source:%s"

	// About one payment submission per 12 seconds sustained, short bursts
	// allowed. Receipt uploads are file writes, so slightly tighter.
	submitRate  = 5.0 / 60.0
	submitBurst = 5
	uploadRate  = 3.0 / 60.0
	uploadBurst = 3
)

// SubmitLimiter throttles the two unauthenticated write paths: payment
// submission and receipt upload. A nil limiter allows everything, which is
// the mode for deployments without redis.
type SubmitLimiter struct {
	bucket *TokenBucket
}

func NewSubmitLimiter(cfg config.Config) *SubmitLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
	})
	return &SubmitLimiter{bucket: NewTokenBucket(client)}
}

func (l *SubmitLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *SubmitLimiter) AllowSubmit(ctx context.Context, accountID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keySubmitAccount, accountID), submitRate, submitBurst)
}

func (l *SubmitLimiter) AllowUpload(ctx context.Context, source string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUploadSource, strings.TrimSpace(source)), uploadRate, uploadBurst)
}
