package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"classledger/internal/adapters/http/middleware"
	"classledger/internal/adapters/http/perf"
	accountStore "classledger/internal/adapters/storage/account"
	classroomStore "classledger/internal/adapters/storage/classroom"
	rosterStore "classledger/internal/adapters/storage/roster"
	sessionStore "classledger/internal/adapters/storage/session"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore   accountStore.Store
	SessionStore   sessionStore.Store
	RosterStore    rosterStore.Store
	ClassroomStore classroomStore.Store
}

// loadCSRFKey reads the CSRF secret from LEDGER_CSRF_KEY (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("LEDGER_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("LEDGER_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if os.Getenv("LEDGER_ENV") == "production" {
		log.Fatal("LEDGER_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (sessions won't survive restart). Set LEDGER_CSRF_KEY for production.")
	return key
}

// trustedOrigins reads the comma-separated origin list from
// LEDGER_TRUSTED_ORIGINS, defaulting to the local development hosts.
func trustedOrigins() []string {
	raw := os.Getenv("LEDGER_TRUSTED_ORIGINS")
	if raw == "" {
		return []string{"localhost:8080", "127.0.0.1:8080"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// NewMux wires HTTP handlers for the app.
func NewMux(staticDir string, s *Stores, collector *perf.Collector) http.Handler {
	stores = s
	perfCollector = collector
	sessions = middleware.NewSessionStore()
	middleware.SecureCookies = os.Getenv("LEDGER_ENV") == "production"

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	registerRoutes(mux)

	// CSRF key: 32-byte hex-encoded secret from env var
	csrfKey := loadCSRFKey()

	// Rate limiter: configurable requests per second per IP (OWASP A04)
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: Timing -> Auth -> CSRF -> SecurityHeaders -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, trustedOrigins()),
		middleware.Auth(sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(collector),
	)
}

// registerRoutes attaches all API handlers to the mux.
func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/login", handleLogin)
	mux.HandleFunc("/api/logout", handleLogout)
	mux.HandleFunc("/api/assignments", handleAssignments)
	mux.HandleFunc("/api/roster", handleRoster)
	mux.HandleFunc("/api/sessions", handleSessions)
	mux.HandleFunc("/api/coverage", handleCoverage)
	mux.HandleFunc("/api/perf", handlePerfDashboard)
}
