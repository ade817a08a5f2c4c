package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

func planServer(id int64, max, current int) *inventory.Server {
	return &inventory.Server{
		ID:             id,
		MaxDomains:     max,
		CurrentDomains: current,
	}
}

func pairsByServer(plan *Plan) map[int64][]int64 {
	out := make(map[int64][]int64)
	for _, p := range plan.Pairs {
		out[p.ServerID] = append(out[p.ServerID], p.DomainID)
	}
	return out
}

func TestBuildPlan_FillFirst(t *testing.T) {
	// Remaining slots: A=3, B=0, C=2. Fill-first packs A before C.
	candidates := []*inventory.Server{
		planServer(1, 5, 2),
		planServer(2, 5, 5),
		planServer(3, 5, 3),
	}
	plan := BuildPlan([]int64{10, 11, 12, 13}, candidates, DistributeFill)

	require.Empty(t, plan.Unplaced)
	got := pairsByServer(plan)
	require.Equal(t, []int64{10, 11, 12}, got[1])
	require.Equal(t, []int64{13}, got[3])
	require.Empty(t, got[2])
}

func TestBuildPlan_EvenDistribution(t *testing.T) {
	// Remaining slots: A=3, B=0, C=2. Round-robin alternates A and C.
	candidates := []*inventory.Server{
		planServer(1, 5, 2),
		planServer(2, 5, 5),
		planServer(3, 5, 3),
	}
	plan := BuildPlan([]int64{10, 11, 12, 13}, candidates, DistributeEven)

	require.Empty(t, plan.Unplaced)
	got := pairsByServer(plan)
	require.Equal(t, []int64{10, 12}, got[1])
	require.Equal(t, []int64{11, 13}, got[3])
}

func TestBuildPlan_SkipsLockedServers(t *testing.T) {
	locked := planServer(1, 5, 0)
	locked.LockedBy = "bob"
	now := time.Now()
	locked.LockedAt = &now

	open := planServer(2, 5, 0)

	plan := BuildPlan([]int64{10, 11}, []*inventory.Server{locked, open}, DistributeFill)
	got := pairsByServer(plan)
	require.Empty(t, got[1])
	require.Equal(t, []int64{10, 11}, got[2])
}

func TestBuildPlan_OverflowIsUnplaced(t *testing.T) {
	candidates := []*inventory.Server{planServer(1, 5, 4)}
	plan := BuildPlan([]int64{10, 11, 12}, candidates, DistributeFill)

	require.Len(t, plan.Pairs, 1)
	require.Equal(t, []int64{11, 12}, plan.Unplaced)
}

func TestBuildPlan_NoCandidates(t *testing.T) {
	plan := BuildPlan([]int64{10, 11}, nil, DistributeEven)
	require.Empty(t, plan.Pairs)
	require.Equal(t, []int64{10, 11}, plan.Unplaced)
}

func TestAutoAssign_FillFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	big := e.seedServer(t, "big", "10.0.0.1", inventory.CapacityHigh)
	small := e.seedServer(t, "small", "10.0.0.2", inventory.CapacityLow)

	ids := make([]int64, 0, 12)
	for i := 0; i < 12; i++ {
		ids = append(ids, e.seedDomain(t, fixtureName(i)).ID)
	}

	res, err := e.planner.AutoAssign(ctx, AutoAssignRequest{DomainIDs: ids, Mode: DistributeFill}, "alice")
	require.NoError(t, err)
	require.Len(t, res.Created, 12)
	require.Empty(t, res.FailedDomainIDs)
	require.Equal(t, 2, res.ServersUsed)

	gotBig, err := e.store.GetServer(ctx, big.ID)
	require.NoError(t, err)
	require.Equal(t, 10, gotBig.CurrentDomains)

	gotSmall, err := e.store.GetServer(ctx, small.ID)
	require.NoError(t, err)
	require.Equal(t, 2, gotSmall.CurrentDomains)
}

func TestAutoAssign_Even(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seedServer(t, "a", "10.0.0.1", inventory.CapacityLow)
	b := e.seedServer(t, "b", "10.0.0.2", inventory.CapacityLow)

	ids := make([]int64, 0, 4)
	for i := 0; i < 4; i++ {
		ids = append(ids, e.seedDomain(t, fixtureName(i)).ID)
	}

	res, err := e.planner.AutoAssign(ctx, AutoAssignRequest{DomainIDs: ids, Mode: DistributeEven}, "alice")
	require.NoError(t, err)
	require.Len(t, res.Created, 4)

	gotA, err := e.store.GetServer(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2, gotA.CurrentDomains)

	gotB, err := e.store.GetServer(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, 2, gotB.CurrentDomains)
}

func TestAutoAssign_CapacityModeFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedServer(t, "low", "10.0.0.1", inventory.CapacityLow)
	high := e.seedServer(t, "high", "10.0.0.2", inventory.CapacityHigh)

	d := e.seedDomain(t, "example.com")

	res, err := e.planner.AutoAssign(ctx, AutoAssignRequest{
		DomainIDs:    []int64{d.ID},
		Mode:         DistributeFill,
		CapacityMode: inventory.CapacityHigh,
	}, "alice")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	require.Equal(t, high.ID, res.Created[0].ServerID)
}

func TestAutoAssign_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.planner.AutoAssign(ctx, AutoAssignRequest{}, "alice")
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = e.planner.AutoAssign(ctx, AutoAssignRequest{DomainIDs: []int64{1}, Mode: "bogus"}, "alice")
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}
