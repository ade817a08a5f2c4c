package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlotsFor(t *testing.T) {
	tests := []struct {
		mode CapacityMode
		want int
	}{
		{CapacityLow, 5},
		{CapacityMedium, 7},
		{CapacityHigh, 10},
		{CapacityMode("bogus"), 5},
		{CapacityMode(""), 5},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, SlotsFor(tt.mode), "mode %q", tt.mode)
	}
}

func TestCapacityModeValid(t *testing.T) {
	require.True(t, CapacityLow.Valid())
	require.True(t, CapacityMedium.Valid())
	require.True(t, CapacityHigh.Valid())
	require.False(t, CapacityMode("huge").Valid())
	require.False(t, CapacityMode("").Valid())
}

func TestRemainingSlots_NeverNegative(t *testing.T) {
	s := &Server{MaxDomains: 5, CurrentDomains: 7}
	require.Equal(t, 0, RemainingSlots(s))
	require.False(t, CanAccept(s))

	s.CurrentDomains = 3
	require.Equal(t, 2, RemainingSlots(s))
	require.True(t, CanAccept(s))
}

func TestUtilizationPercent(t *testing.T) {
	require.Equal(t, 0.0, UtilizationPercent(&Server{}))
	require.InDelta(t, 60.0, UtilizationPercent(&Server{MaxDomains: 5, CurrentDomains: 3}), 0.01)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, ServerFree, StatusFor(0))
	require.Equal(t, ServerInUse, StatusFor(1))
}

func TestNormalizeDomainName(t *testing.T) {
	require.Equal(t, "example.com", NormalizeDomainName("  Example.COM "))
	require.Equal(t, "", NormalizeDomainName("   "))
}

func TestServerLocked(t *testing.T) {
	s := &Server{}
	require.False(t, s.Locked())
	s.LockedBy = "alice"
	require.True(t, s.Locked())
}

func TestGroupAggregate(t *testing.T) {
	gid := int64(7)
	other := int64(8)
	g := &ServerGroup{ID: gid}
	servers := []*Server{
		{ID: 1, GroupID: &gid, MaxDomains: 5, CurrentDomains: 2},
		{ID: 2, GroupID: &gid, MaxDomains: 10, CurrentDomains: 0},
		{ID: 3, GroupID: &other, MaxDomains: 7, CurrentDomains: 7},
		{ID: 4},
	}
	g.Aggregate(servers)
	require.Equal(t, 2, g.ServerCount)
	require.Equal(t, 15, g.TotalCapacity)
	require.Equal(t, 2, g.TotalDomains)
}
