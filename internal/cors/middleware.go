package cors

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	allowMethods = "GET,POST,DELETE,OPTIONS"
	allowHeaders = "Content-Type,Authorization"
)

type Middleware struct {
	logger   *zap.Logger
	wildcard bool
	allowed  map[string]struct{}
}

// NewMiddleware allows the given origins. "*" or an empty list allows any origin.
func NewMiddleware(logger *zap.Logger, allowOrigins []string) *Middleware {
	m := &Middleware{
		logger:  logger,
		allowed: make(map[string]struct{}, len(allowOrigins)),
	}
	for _, origin := range allowOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			m.wildcard = true
			continue
		}
		if origin != "" {
			m.allowed[origin] = struct{}{}
		}
	}
	if len(m.allowed) == 0 {
		m.wildcard = true
	}
	return m
}

func (m *Middleware) HandlerFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !m.originAllowed(origin) {
				m.logger.Debug("Rejected cross-origin request", zap.String("origin", origin), zap.String("path", r.URL.Path))
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next(w, r)
				return
			}

			if m.wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
			w.Header().Set("Access-Control-Max-Age", "300")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func (m *Middleware) originAllowed(origin string) bool {
	if m.wildcard {
		return true
	}
	_, ok := m.allowed[origin]
	return ok
}
