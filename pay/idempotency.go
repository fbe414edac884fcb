package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"storefront/logger"
	"storefront/middleware"
	"storefront/utils"
)

const (
	HeaderKey = "Idempotency-Key"
	recordTTL = 24 * time.Hour
	maxBody   = 1 << 20
)

func computeRequestHash(r *http.Request, body []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureResponseWriter passes writes through while keeping a copy of status and body.
type CaptureResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func NewCaptureResponseWriter(w http.ResponseWriter) *CaptureResponseWriter {
	return &CaptureResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (c *CaptureResponseWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.statusCode = statusCode
	c.wroteHeader = true
	c.ResponseWriter.WriteHeader(statusCode)
}

func (c *CaptureResponseWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *CaptureResponseWriter) Status() int { return c.statusCode }

func (c *CaptureResponseWriter) BodyBytes() []byte { return c.buf.Bytes() }

// Idempotency replays the first response for a repeated Idempotency-Key.
// It must run inside the auth gate so keys are scoped to the caller.
type Idempotency struct {
	store Store
	errs  utils.ErrorResponder
	log   *logger.Logger
	now   func() time.Time
}

func NewIdempotency(store Store, errs utils.ErrorResponder, log *logger.Logger) *Idempotency {
	return &Idempotency{store: store, errs: errs, log: log, now: time.Now}
}

// Wrap guards next. Requests without the header pass straight through.
//   - first use of a key: next runs and a non-5xx response is remembered
//   - same key and same request: the remembered response is written again
//   - same key with a different body, or while the first is still running: 409
func (i *Idempotency) Wrap(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := r.Header.Get(HeaderKey)
		if key == "" {
			next(w, r, ps)
			return
		}

		userID := ""
		if user, ok := middleware.CurrentUser(r); ok {
			userID = user.ID.Hex()
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			i.errs.Write(w, utils.Validation("Failed to read request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		now := i.now()
		rec := Record{
			Key:         userID + ":" + key,
			Method:      r.Method,
			Path:        r.URL.Path,
			UserID:      userID,
			RequestHash: computeRequestHash(r, body, userID),
			CreatedAt:   now,
			ExpiresAt:   now.Add(recordTTL),
		}

		existing, reserved, err := i.store.Reserve(r.Context(), rec)
		if err != nil {
			i.errs.Write(w, utils.Internal("Idempotency lookup failed", err))
			return
		}
		if !reserved {
			i.replay(w, existing, rec.RequestHash)
			return
		}

		crw := NewCaptureResponseWriter(w)
		next(crw, r, ps)

		ctx := context.WithoutCancel(r.Context())
		if crw.Status() >= http.StatusInternalServerError {
			if err := i.store.Release(ctx, rec.Key); err != nil {
				i.log.Warn("releasing idempotency key failed", "key", key, "err", err)
			}
			return
		}
		resp := StoredResponse{
			Status:      crw.Status(),
			ContentType: crw.Header().Get("Content-Type"),
			Body:        append([]byte(nil), crw.BodyBytes()...),
		}
		if err := i.store.Complete(ctx, rec.Key, resp); err != nil {
			i.log.Warn("saving idempotent response failed", "key", key, "err", err)
		}
	}
}

func (i *Idempotency) replay(w http.ResponseWriter, existing *Record, hash string) {
	switch {
	case existing.RequestHash != hash:
		i.errs.Write(w, utils.Conflict("Idempotency-Key was already used for a different request"))
	case existing.Response == nil:
		i.errs.Write(w, utils.Conflict("A request with this Idempotency-Key is still in progress"))
	default:
		if existing.Response.ContentType != "" {
			w.Header().Set("Content-Type", existing.Response.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.Response.Status)
		_, _ = w.Write(existing.Response.Body)
	}
}
