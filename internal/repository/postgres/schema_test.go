package postgres

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// The repository code leans on two partial unique indexes for its
// concurrency guarantees; this pins them in the migration so neither
// can be dropped without a failing test.
func TestSchemaDeclaresEmailUniquenessPerStatus(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "schema.sql"))
	require.NoError(t, err)
	schema := string(raw)

	// One active account per email: registration conflicts and the
	// activation race both resolve through this index.
	require.Regexp(t,
		regexp.MustCompile(`CREATE UNIQUE INDEX[^;]+accounts_active_email_uq\s+ON accounts \(email\) WHERE status = 'active'`),
		schema)

	// One pending reservation per email: of two concurrent
	// registrations, the loser's insert collides here, so only one
	// one-time code is ever live for an email.
	require.Regexp(t,
		regexp.MustCompile(`CREATE UNIQUE INDEX[^;]+accounts_pending_email_uq\s+ON accounts \(email\) WHERE status = 'pending'`),
		schema)
}
