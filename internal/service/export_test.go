package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/inventory"
	"domainhub.io/hubd/internal/repository"
)

func TestExportDomainHub_Format(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	withPass := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)
	withPass.Password = "secret"
	require.NoError(t, e.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.UpdateServer(ctx, withPass)
	}))

	noPass := e.seedServer(t, "web-2", "10.0.0.2", inventory.CapacityLow)
	e.seedServer(t, "empty", "10.0.0.3", inventory.CapacityLow)

	for _, name := range []string{"zeta.com", "alpha.com"} {
		d := e.seedDomain(t, name)
		_, err := e.assignments.Assign(ctx, d.ID, withPass.ID, "alice")
		require.NoError(t, err)
	}
	d := e.seedDomain(t, "solo.com")
	_, err := e.assignments.Assign(ctx, d.ID, noPass.ID, "alice")
	require.NoError(t, err)

	text, err := e.exports.DomainHub(ctx, ExportScope{})
	require.NoError(t, err)

	want := "10.0.0.1 secret\nalpha.com\nzeta.com\n\n10.0.0.2\nsolo.com\n"
	require.Equal(t, want, text)
}

func TestExportDomainHub_EmptyInventory(t *testing.T) {
	e := newEnv(t)
	text, err := e.exports.DomainHub(context.Background(), ExportScope{})
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestExportDomainHub_ScopedToServer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seedServer(t, "a", "10.0.0.1", inventory.CapacityLow)
	b := e.seedServer(t, "b", "10.0.0.2", inventory.CapacityLow)

	d1 := e.seedDomain(t, "one.com")
	d2 := e.seedDomain(t, "two.com")
	_, err := e.assignments.Assign(ctx, d1.ID, a.ID, "alice")
	require.NoError(t, err)
	_, err = e.assignments.Assign(ctx, d2.ID, b.ID, "alice")
	require.NoError(t, err)

	text, err := e.exports.DomainHub(ctx, ExportScope{ServerID: a.ID})
	require.NoError(t, err)
	require.Contains(t, text, "one.com")
	require.NotContains(t, text, "two.com")
}

func TestExportCSV(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)
	d := e.seedDomain(t, "example.com")
	_, err := e.assignments.Assign(ctx, d.ID, srv.ID, "alice")
	require.NoError(t, err)

	data, err := e.exports.CSV(ctx)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "domain_name,server_name,server_ip,assigned_at,assigned_by", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "example.com,web-1,10.0.0.1,"))
	require.True(t, strings.HasSuffix(lines[1], ",alice"))
}

func TestExportServerConfig(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)

	for _, name := range []string{"zeta.com", "alpha.com"} {
		d := e.seedDomain(t, name)
		_, err := e.assignments.Assign(ctx, d.ID, srv.ID, "alice")
		require.NoError(t, err)
	}

	out, err := e.exports.ServerConfig(ctx, srv.ID)
	require.NoError(t, err)
	require.Equal(t, "web-1", out.Server.Name)
	require.Equal(t, []string{"alpha.com", "zeta.com"}, out.Domains)
	require.Equal(t, 2, out.Stats.CurrentDomains)
	require.Equal(t, 3, out.Stats.RemainingSlots)
	require.InDelta(t, 40.0, out.Stats.Utilization, 0.01)
}
