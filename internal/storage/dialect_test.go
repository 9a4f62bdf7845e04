package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := "SELECT id FROM product WHERE url = ? AND price > ?"
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "SELECT id FROM product WHERE url = $1 AND price > $2", Postgres.rebind(q))
}

func TestLockClause(t *testing.T) {
	assert.Equal(t, "", SQLite.lockClause())
	assert.Equal(t, " FOR UPDATE", Postgres.lockClause())
}
