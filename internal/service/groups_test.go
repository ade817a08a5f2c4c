package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

func TestGroupAggregates_DerivedFromMembers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.seedGroup(t, "edge")
	a := e.seedServer(t, "a", "10.0.0.1", inventory.CapacityLow)
	b := e.seedServer(t, "b", "10.0.0.2", inventory.CapacityHigh)
	e.seedServer(t, "outside", "10.0.0.3", inventory.CapacityLow)

	_, err := e.groups.AddServers(ctx, g.ID, []int64{a.ID, b.ID}, "alice")
	require.NoError(t, err)

	d := e.seedDomain(t, "example.com")
	_, err = e.assignments.Assign(ctx, d.ID, a.ID, "alice")
	require.NoError(t, err)

	got, err := e.groups.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.ServerCount)
	require.Equal(t, 15, got.TotalCapacity)
	require.Equal(t, 1, got.TotalDomains)
}

func TestGroupDelete_DetachesMembers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.seedGroup(t, "edge")
	srv := e.seedServer(t, "a", "10.0.0.1", inventory.CapacityLow)

	_, err := e.groups.AddServers(ctx, g.ID, []int64{srv.ID}, "alice")
	require.NoError(t, err)

	require.NoError(t, e.groups.Delete(ctx, g.ID, "alice"))

	gotSrv, err := e.store.GetServer(ctx, srv.ID)
	require.NoError(t, err)
	require.Nil(t, gotSrv.GroupID)
}

func TestGroupAddServers_MovesBetweenGroups(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g1 := e.seedGroup(t, "edge")
	g2 := e.seedGroup(t, "core")
	srv := e.seedServer(t, "a", "10.0.0.1", inventory.CapacityLow)

	_, err := e.groups.AddServers(ctx, g1.ID, []int64{srv.ID}, "alice")
	require.NoError(t, err)
	_, err = e.groups.AddServers(ctx, g2.ID, []int64{srv.ID}, "alice")
	require.NoError(t, err)

	members, err := e.groups.Members(ctx, g2.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	members, err = e.groups.Members(ctx, g1.ID)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestGroupRemoveServers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.seedGroup(t, "edge")
	srv := e.seedServer(t, "a", "10.0.0.1", inventory.CapacityLow)

	_, err := e.groups.AddServers(ctx, g.ID, []int64{srv.ID}, "alice")
	require.NoError(t, err)
	_, err = e.groups.RemoveServers(ctx, g.ID, []int64{srv.ID}, "alice")
	require.NoError(t, err)

	ungrouped, err := e.groups.Ungrouped(ctx)
	require.NoError(t, err)
	require.Len(t, ungrouped, 1)
	require.Equal(t, srv.ID, ungrouped[0].ID)
}

func TestGroupNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.groups.Get(ctx, 404)
	require.True(t, apperrors.IsCode(err, apperrors.CodeGroupNotFound))

	_, err = e.groups.AddServers(ctx, 404, []int64{1}, "alice")
	require.True(t, apperrors.IsCode(err, apperrors.CodeGroupNotFound))
}

func TestGroupAddServers_ReportsUnknownMembers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.seedGroup(t, "edge")
	srv := e.seedServer(t, "a", "10.0.0.1", inventory.CapacityLow)

	res, err := e.groups.AddServers(ctx, g.ID, []int64{srv.ID, 404}, "alice")
	require.NoError(t, err)
	require.Equal(t, []int64{404}, res.FailedServerIDs)
	require.Equal(t, 1, res.Group.ServerCount)
}
