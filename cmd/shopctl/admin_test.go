package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMemoryDB(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("DB_AUTO_MIGRATE", "true")
}

func TestCreateAdmin(t *testing.T) {
	useMemoryDB(t)

	var out bytes.Buffer
	cmd := createAdminCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--email", "Root@Shop.com", "--password", "secret123"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "admin root@shop.com created")
}

func TestCreateAdmin_ShortPassword(t *testing.T) {
	useMemoryDB(t)
	t.Setenv("ADMIN_PASSWORD", "")

	cmd := createAdminCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--email", "root@shop.com", "--password", "123"})

	assert.Error(t, cmd.Execute())
}

func TestReindex_RequiresSearch(t *testing.T) {
	useMemoryDB(t)
	t.Setenv("ES_URL", "")

	cmd := reindexCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ES_URL")
}
