package auth

import (
	"crypto/sha256"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"inpaint_backend/logging"
)

// Defaults for the login rate limiter.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = time.Minute
	DefaultBlock       = 5 * time.Minute

	// DefaultCacheTTL is how long a verified password skips bcrypt.
	DefaultCacheTTL = 10 * time.Minute
)

const realm = `Basic realm="inpaint", charset="UTF-8"`

// Middleware checks HTTP basic auth against one bcrypt password hash. The
// user name is ignored.
type Middleware struct {
	hash    string
	limiter *RateLimiter
	logger  *logging.Logger
	ttl     time.Duration

	mu       sync.Mutex
	verified map[[sha256.Size]byte]time.Time
}

// NewMiddleware returns a Middleware for hash, a bcrypt hash from
// HashPassword.
func NewMiddleware(hash string, logger *logging.Logger) (*Middleware, error) {
	if !IsValidHash(hash) {
		return nil, ErrInvalidHash
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Middleware{
		hash:     hash,
		limiter:  NewRateLimiter(DefaultMaxAttempts, DefaultWindow, DefaultBlock),
		logger:   logger.Named("auth"),
		ttl:      DefaultCacheTTL,
		verified: make(map[[sha256.Size]byte]time.Time),
	}, nil
}

// Middleware wraps next with the password check.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if ok, wait := m.limiter.Allow(client); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok || !m.check(password) {
			if ok {
				m.limiter.RecordFailure(client)
				m.logger.Warn("Rejected password", zap.String("client", client))
			}
			w.Header().Set("WWW-Authenticate", realm)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		m.limiter.Reset(client)
		next.ServeHTTP(w, r)
	})
}

// check verifies password. Successes are cached for ttl.
func (m *Middleware) check(password string) bool {
	if password == "" {
		return false
	}
	key := sha256.Sum256([]byte(password))
	now := time.Now()

	m.mu.Lock()
	expires, cached := m.verified[key]
	m.mu.Unlock()
	if cached && now.Before(expires) {
		return true
	}

	if VerifyPassword(password, m.hash) != nil {
		return false
	}
	m.mu.Lock()
	m.verified[key] = now.Add(m.ttl)
	m.mu.Unlock()
	return true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
