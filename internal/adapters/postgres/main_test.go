package postgres

import (
	"SuggestBot/internal/adapters/security"
	"SuggestBot/internal/core/ports"
	"context"
	"crypto/rand"
	"log"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

var (
	testDB     *DB
	testSecSvc ports.SecurityPort
)

// TestMain connects to the database named by JOURNAL_DSN. Without it the
// tests in this package are skipped.
func TestMain(m *testing.M) {
	nopLogger := zerolog.Nop()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("TestMain: failed to generate key: %v", err)
	}
	var err error
	testSecSvc, err = security.NewAESService(key, &nopLogger)
	if err != nil {
		log.Fatalf("TestMain: failed to create security service: %v", err)
	}

	dsn := os.Getenv("JOURNAL_DSN")
	if dsn == "" {
		os.Exit(m.Run())
	}

	testDB, err = NewDB(context.Background(), dsn, &nopLogger)
	if err != nil {
		log.Fatalf("TestMain: failed to connect to test database: %v", err)
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("JOURNAL_DSN not set")
	}
}
