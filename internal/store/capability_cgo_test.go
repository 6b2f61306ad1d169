//go:build cgo

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapability_Sqlite3Driver(t *testing.T) {
	c := NewCapability("sqlite3:cgo.db", true)
	activate(t, c)

	v, err := call(t, c, CommandSelect, `{"db":"sqlite3:cgo.db","query":"SELECT 1 AS one"}`)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"one": int64(1)}}, v)
}
