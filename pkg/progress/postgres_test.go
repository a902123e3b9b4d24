package progress

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/dftd-labeler/pkg/jobid"
)

// TestPostgresIntegration runs against a real database.
// Set DATABASE_DSN to run: export DATABASE_DSN="postgresql://..."
func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL integration test: DATABASE_DSN not set")
	}

	store, err := NewStore(Config{Type: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	in := fmt.Sprintf("in-%d.xyz", time.Now().UnixNano())
	id := jobid.Identity(in, "out.xyz")
	defer store.Delete(ctx, id)

	require.NoError(t, store.Save(ctx, Record{JobID: id, InputPath: in, OutputPath: "out.xyz", LastIndex: 7}))

	rec, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 7, rec.LastIndex)
	assert.Equal(t, in, rec.InputPath)
}
