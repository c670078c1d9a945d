package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	web "classledger/internal/adapters/http"
	"classledger/internal/adapters/http/perf"
	"classledger/internal/adapters/storage"
	accountStore "classledger/internal/adapters/storage/account"
	classroomStore "classledger/internal/adapters/storage/classroom"
	rosterStore "classledger/internal/adapters/storage/roster"
	sessionStore "classledger/internal/adapters/storage/session"
	"classledger/internal/application/orchestrators"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load .env if present; real environments set variables directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Initialize database with WAL mode, foreign keys, and busy timeout
	dbPath := envOrDefault("LEDGER_DB_PATH", "classledger.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	if err := storage.MigrateDB(db, dbPath); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	acctStore := accountStore.NewSQLiteStore(timedDB)
	rosStore := rosterStore.NewSQLiteStore(timedDB)
	clsStore := classroomStore.NewSQLiteStore(timedDB)
	stores := &web.Stores{
		AccountStore:   acctStore,
		SessionStore:   sessionStore.NewSQLiteStore(timedDB),
		RosterStore:    rosStore,
		ClassroomStore: clsStore,
	}

	// Seed default admin account if no accounts exist
	adminEmail := envOrDefault("LEDGER_ADMIN_EMAIL", "admin@classledger.local")
	adminPassword := envOrDefault("LEDGER_ADMIN_PASSWORD", "change-me-on-first-login")
	seedDeps := orchestrators.CreateAccountDeps{AccountStore: acctStore}
	if err := orchestrators.ExecuteSeedAdmin(context.Background(), seedDeps, adminEmail, adminPassword); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}

	// Seed a demo teacher, classes, and rosters for development only
	if os.Getenv("LEDGER_ENV") != "production" {
		teacherEmail := envOrDefault("LEDGER_TEACHER_EMAIL", "teacher@classledger.local")
		teacherPassword := envOrDefault("LEDGER_TEACHER_PASSWORD", "teach-me-something")
		schoolDeps := orchestrators.SeedSchoolDeps{
			AccountStore:   acctStore,
			RosterStore:    rosStore,
			ClassroomStore: clsStore,
			SessionStore:   stores.SessionStore,
		}
		if err := orchestrators.ExecuteSeedSchool(context.Background(), schoolDeps, teacherEmail, teacherPassword); err != nil {
			log.Fatalf("failed to seed school data: %v", err)
		}
		log.Println("Demo school data loaded (dev mode)")
	}

	// Create HTTP handler with middleware (pass collector for timing + dashboard)
	mux := web.NewMux(envOrDefault("LEDGER_STATIC_DIR", "static"), stores, collector)

	addr := envOrDefault("LEDGER_ADDR", ":8080")
	log.Printf("Class ledger %s starting on %s (env=%s, schema=%d)", version, addr, envOrDefault("LEDGER_ENV", "development"), storage.LatestSchemaVersion())

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
