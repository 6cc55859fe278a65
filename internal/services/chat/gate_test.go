package chat

import (
	"context"
	"testing"

	"mwork_messaging/internal/models"
	"mwork_messaging/internal/repositories"
	"mwork_messaging/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionGate(t *testing.T) {
	db := testutil.NewTestDB(t)
	gate := NewConnectionGate(db, repositories.NewConnectionRepository())
	ctx := context.Background()

	testutil.Connect(t, db, "alice", "bob")
	testutil.Relate(t, db, "alice", "carol", models.ConnectionStatusPending)
	testutil.Relate(t, db, "dave", "alice", models.ConnectionStatusBlocked)

	assert.True(t, gate.IsConnected(ctx, "alice", "bob"))
	assert.True(t, gate.IsConnected(ctx, "bob", "alice"), "either direction")
	assert.False(t, gate.IsConnected(ctx, "alice", "carol"))
	assert.False(t, gate.IsConnected(ctx, "alice", "dave"))
	assert.False(t, gate.IsConnected(ctx, "alice", "alice"))
	assert.False(t, gate.IsConnected(ctx, "", "bob"))
}

func TestConnectionGate_FailsClosed(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.Connect(t, db, "alice", "bob")
	gate := NewConnectionGate(db, repositories.NewConnectionRepository())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.False(t, gate.IsConnected(context.Background(), "alice", "bob"))
}
