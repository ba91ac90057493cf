package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"packcore/internal/core/apperror"
	appctx "packcore/internal/core/context"
	"packcore/internal/infrastructure/storage/postgres"
	"packcore/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxKeyIdempotencyKey   = "idempotency_key"
	ctxKeyIdempotencyStore = "idempotency_store"
)

// IdempotencyStore persists X-Idempotency-Key outcomes.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
}

var _ IdempotencyStore = (*postgres.IdempotencyStore)(nil)

// Idempotency middleware protects against duplicate requests.
// Used for POST/PUT/PATCH operations that should be idempotent.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()
		userID := appctx.GetUserID(c.Request.Context())

		replay, err := store.AcquireKey(c.Request.Context(), key, userID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxKeyIdempotencyKey, key)
		c.Set(ctxKeyIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores a successful response under the request's key
// with the same status, content type and body so a retry replays it exactly.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	var raw []byte
	if response != nil {
		var err error
		if raw, err = json.Marshal(response); err != nil {
			logger.Warn(c.Request.Context(), "failed to encode idempotent response", "key", key, "error", err)
			return
		}
	}
	if err := store.CompleteKey(c.Request.Context(), key, statusCode, contentType, raw); err != nil {
		logger.Warn(c.Request.Context(), "failed to store idempotent response", "key", key, "error", err)
	}
}

func idempotencyFrom(c *gin.Context) (string, IdempotencyStore, bool) {
	key, exists := c.Get(ctxKeyIdempotencyKey)
	if !exists {
		return "", nil, false
	}
	v, ok := c.Get(ctxKeyIdempotencyStore)
	if !ok {
		return "", nil, false
	}
	store, ok := v.(IdempotencyStore)
	if !ok || store == nil {
		return "", nil, false
	}
	return key.(string), store, true
}
