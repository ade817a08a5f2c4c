package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

func TestLockRegistry_AcquireRelease(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)

	state, err := e.locks.Acquire(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)
	require.True(t, state.Locked)
	require.Equal(t, "alice", state.LockedBy)
	require.NotNil(t, state.LockedAt)

	state, err = e.locks.Release(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)
	require.False(t, state.Locked)
	require.Empty(t, state.LockedBy)
}

func TestLockRegistry_AcquireIdempotentForHolder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)

	_, err := e.locks.Acquire(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)

	state, err := e.locks.Acquire(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)
	require.True(t, state.Locked)
	require.Equal(t, "alice", state.LockedBy)
}

func TestLockRegistry_HeldByAnother(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)

	_, err := e.locks.Acquire(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)

	_, err = e.locks.Acquire(ctx, inventory.KindServer, srv.ID, "bob")
	require.True(t, apperrors.IsCode(err, apperrors.CodeLockHeld))
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, "alice", appErr.Params["by"])

	_, err = e.locks.Release(ctx, inventory.KindServer, srv.ID, "bob")
	require.True(t, apperrors.IsCode(err, apperrors.CodeLockHeld))
}

func TestLockRegistry_ReleaseUnlockedSucceeds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)

	state, err := e.locks.Release(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)
	require.False(t, state.Locked)
}

func TestLockRegistry_Toggle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.seedDomain(t, "example.com")

	state, err := e.locks.Toggle(ctx, inventory.KindDomain, d.ID, "alice")
	require.NoError(t, err)
	require.True(t, state.Locked)

	state, err = e.locks.Toggle(ctx, inventory.KindDomain, d.ID, "alice")
	require.NoError(t, err)
	require.False(t, state.Locked)
}

func TestLockRegistry_DomainLockIndependentOfServerLock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)
	d := e.seedDomain(t, "example.com")

	_, err := e.locks.Acquire(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)

	state, err := e.locks.Acquire(ctx, inventory.KindDomain, d.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", state.LockedBy)
}

func TestLockRegistry_PublishesLockEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)

	lockEvents := e.collect(events.ChannelLocks)

	_, err := e.locks.Acquire(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)
	_, err = e.locks.Release(ctx, inventory.KindServer, srv.ID, "alice")
	require.NoError(t, err)

	require.Len(t, *lockEvents, 2)
	require.Equal(t, events.ActionLockAcquired, (*lockEvents)[0].Action)
	require.Equal(t, events.ActionLockReleased, (*lockEvents)[1].Action)
}
