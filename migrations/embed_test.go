package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	got := Statements("-- header\nCREATE TABLE a (x INT);\n\n-- note\nCREATE TABLE b (\n  y INT\n);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (\n  y INT\n)"}, got)
}

func TestEmbeddedFiles(t *testing.T) {
	b, err := FS.ReadFile("mysql/001_init.sql")
	require.NoError(t, err)
	assert.Len(t, Statements(string(b)), 2)

	b, err = FS.ReadFile("clickhouse/001_leads.sql")
	require.NoError(t, err)
	assert.Len(t, Statements(string(b)), 2)
}
