// Package cache keeps finished conversions in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"nbconvert/internal/infra/logging"
)

const keyPrefix = "nbconvert:"

// Entry is a cached response.
type Entry struct {
	ContentType string `json:"content_type"`
	// Filename is set when the response was sent as an attachment.
	Filename string `json:"filename,omitempty"`
	Body     []byte `json:"body"`
}

// Results reads and writes cached conversions. A nil *Results is a valid,
// always-missing cache.
type Results struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a result cache on rdb. Entries expire after ttl, or a minute
// when ttl is not positive.
func New(rdb *redis.Client, ttl time.Duration) *Results {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Results{rdb: rdb, ttl: ttl}
}

// FileKey identifies the conversion of a stored notebook. Size and mtime
// make edits to the file invalidate earlier entries.
func FileKey(format, osPath string, size int64, modified time.Time, download bool) string {
	h := sha256.New()
	h.Write([]byte("file\x00"))
	h.Write([]byte(format + "\x00"))
	h.Write([]byte(osPath + "\x00"))
	h.Write([]byte(strconv.FormatInt(size, 10) + "\x00"))
	h.Write([]byte(strconv.FormatInt(modified.UnixNano(), 10) + "\x00"))
	h.Write([]byte(strconv.FormatBool(download)))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// InlineKey identifies the conversion of a posted notebook.
func InlineKey(format string, content []byte) string {
	h := sha256.New()
	h.Write([]byte("inline\x00"))
	h.Write([]byte(format + "\x00"))
	h.Write(content)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry stored under key, or nil on a miss.
func (r *Results) Get(ctx context.Context, key string) (*Entry, error) {
	if r == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		logging.Warn("Dropping unreadable cache entry", "key", key, "error", err)
		_ = r.rdb.Del(ctx, key).Err()
		return nil, nil
	}
	logging.Info("Conversion cache hit", "key", key)
	return &e, nil
}

// Set stores e under key. Failures are logged and otherwise ignored.
func (r *Results) Set(ctx context.Context, key string, e Entry) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	raw, err := json.Marshal(e)
	if err != nil {
		logging.Warn("Encoding cache entry failed", "error", err)
		return
	}
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
