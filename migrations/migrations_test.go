package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The startup runner lists FS at "." and applies every *.up.sql entry it
// finds there. The migration files must therefore sit at the root of the
// embedded filesystem, not under a subdirectory.
func TestFS_MigrationsAtRoot(t *testing.T) {
	entries, err := FS.ReadDir(".")
	require.NoError(t, err)

	var applied []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		applied = append(applied, entry.Name())
	}

	assert.Equal(t, []string{
		"001_create_carts.up.sql",
		"002_create_cart_items.up.sql",
	}, applied)
}

func TestFS_MigrationsReadable(t *testing.T) {
	content, err := FS.ReadFile("001_create_carts.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE")

	content, err = FS.ReadFile("002_create_cart_items.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "cart_items")
}
