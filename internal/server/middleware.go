package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// UserInfo identifies the requesting user.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type contextKey int

const (
	userInfoKey contextKey = iota
	userIDKey
)

var devUser = UserInfo{Login: "local", DisplayName: "Local Dev User"}

// identity resolves the requesting user. Behind tsnet the Tailscale WhoIs
// lookup supplies the identity and the user row is looked up or created; in
// dev mode every request maps to user 1.
func (s *Server) identity(next http.Handler) http.Handler {
	if s.tsClient == nil {
		return DevIdentity(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who, err := s.tsClient.WhoIs(r.Context(), r.RemoteAddr)
		if err != nil {
			s.log.Warn("whois failed", "remote", r.RemoteAddr, "error", err)
			http.Error(w, `{"error":"identity lookup failed"}`, http.StatusForbidden)
			return
		}
		info := UserInfo{
			Login:       who.UserProfile.LoginName,
			DisplayName: who.UserProfile.DisplayName,
		}

		uid, err := s.db.GetOrCreateUser(r.Context(), info.Login, info.DisplayName)
		if err != nil {
			s.log.Error("user lookup failed", "login", info.Login, "error", err)
			http.Error(w, `{"error":"user lookup failed"}`, http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userInfoKey, info)
		ctx = context.WithValue(ctx, userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DevIdentity maps every request to user 1, enabling local development
// without Tailscale.
func DevIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), userInfoKey, devUser)
		ctx = context.WithValue(ctx, userIDKey, 1)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userIDFromContext returns the user ID stored by identity middleware, or 1
// when none is present (fallback for safety).
func userIDFromContext(r *http.Request) int {
	if uid, ok := r.Context().Value(userIDKey).(int); ok {
		return uid
	}
	return 1
}

// userInfoFromContext returns the UserInfo stored by identity middleware, or
// the local dev identity when none is present.
func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return devUser
}

// APIKeyAuth returns middleware that validates the X-API-Key header.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
				return
			}
			if key != apiKey {
				http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
