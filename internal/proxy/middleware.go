package proxy

import (
	"net/http"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/guard"
	"github.com/rs/zerolog"
)

// Rejection messages returned to clients.
const (
	MsgMalformed      = "Bad Request - Malformed request data"
	MsgSecurityThreat = "Forbidden - Security threat detected (SQL injection, XSS, or directory traversal)"
	MsgRateLimited    = "Forbidden - Rate limit exceeded. Too many requests within the time window."
)

// Rejection maps a verdict reason to the HTTP status and body sent back.
func Rejection(reason guard.Reason) (int, string) {
	switch reason {
	case guard.ReasonMalformed:
		return http.StatusBadRequest, MsgMalformed
	case guard.ReasonSecurityThreat:
		return http.StatusForbidden, MsgSecurityThreat
	case guard.ReasonRateLimited:
		return http.StatusForbidden, MsgRateLimited
	default:
		return http.StatusForbidden, "Forbidden"
	}
}

// validationMiddleware runs every request through the validator. Allowed
// requests reach next with their descriptor attached to the context.
func validationMiddleware(next http.Handler, builder guard.DescriptorBuilder, v *guard.Validator, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := builder.Build(r)
		verdict := v.Validate(d)
		if !verdict.Valid() {
			status, msg := Rejection(verdict.Reason)
			logger.Info().
				Str("client", d.ClientKey).
				Str("method", d.Method).
				Str("target", d.RawTarget).
				Str("reason", verdict.Reason.String()).
				Msg("request rejected")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(msg))
			return
		}
		next.ServeHTTP(w, r.WithContext(guard.WithDescriptor(r.Context(), d)))
	})
}

// authMiddleware enforces API key authentication on the admin API.
// Keys come from proxy.api_keys or SIEMPROXY_API_KEY. With no keys
// configured every request is allowed.
func authMiddleware(cfg *core.Config, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				auth := r.Header.Get("Authorization")
				if len(auth) > 7 && auth[:7] == "Bearer " {
					key = auth[7:]
				}
			}
			if key == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "missing authentication, provide Authorization: Bearer <key> or X-API-Key header",
				})
				return
			}
			if !cfg.ValidateAPIKey(key) {
				logger.Warn().Str("path", r.URL.Path).Str("ip", r.RemoteAddr).Msg("invalid API key")
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
