package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/metrics"
	"github.com/wishmail/wishmail/internal/observability"
)

// panicBody mirrors the JSON error envelope. It is written here directly
// because the errors package depends on this one.
type panicBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// Recovery turns a handler panic into a 500 envelope. The stack trace goes to
// the log, not to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := GetRequestID(r.Context())
			route := RoutePattern(r)
			metrics.RecordPanic(route)
			observability.Logger().Error("Handler panic recovered",
				zap.String("route", route),
				zap.String("request_id", requestID),
				zap.String("panic", fmt.Sprint(rec)),
				zap.ByteString("stack", debug.Stack()))

			var body panicBody
			body.Error.Code = "INTERNAL_ERROR"
			body.Error.Message = "internal server error"
			body.Error.RequestID = requestID

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(body)
		}()

		next.ServeHTTP(w, r)
	})
}
