package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunRejectsBadFlags(t *testing.T) {
	assert.EqualError(t, run("", "admin", time.Hour), "-subject is required")
	assert.EqualError(t, run("ops", "admin", 0), "-ttl must be positive")
}

func TestRunMintsToken(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "test-signing-key")
	t.Setenv("DATABASE_URL", "")
	assert.NoError(t, run("ops@example.edu", "admin", time.Minute))
}
