package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/infrastructure"
	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

// testPool connects to the database named by TEST_DATABASE_URL. Tests
// that need a live PostgreSQL are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, infrastructure.Migrate(ctx, pool))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, "TRUNCATE assignments, domains, servers, server_groups RESTART IDENTITY CASCADE")
		pool.Close()
	})
	return pool
}

func TestPostgresStore_AssignmentRoundTrip(t *testing.T) {
	pool := testPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	var srv inventory.Server
	var d inventory.Domain
	err := store.WithTx(ctx, func(tx Tx) error {
		srv = inventory.Server{
			Name:         "pg-test-server",
			IPAddress:    "192.0.2.10",
			Status:       inventory.ServerFree,
			CapacityMode: inventory.CapacityLow,
			MaxDomains:   inventory.SlotsFor(inventory.CapacityLow),
		}
		if err := tx.CreateServer(ctx, &srv); err != nil {
			return err
		}
		d = inventory.Domain{Name: "pg-test.example.com", Status: inventory.DomainFree}
		if err := tx.CreateDomain(ctx, &d); err != nil {
			return err
		}
		return tx.InsertAssignment(ctx, &inventory.Assignment{
			DomainID:   d.ID,
			ServerID:   srv.ID,
			AssignedBy: "tester",
		})
	})
	require.NoError(t, err)

	list, err := store.ListAssignments(ctx, AssignmentFilter{ServerID: &srv.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "pg-test.example.com", list[0].DomainName)
	require.Equal(t, "192.0.2.10", list[0].ServerIP)

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertAssignment(ctx, &inventory.Assignment{DomainID: d.ID, ServerID: srv.ID})
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeDomainAlreadyAssigned))
}

func TestPostgresStore_RowLockSerializesWriters(t *testing.T) {
	pool := testPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	var srv inventory.Server
	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		srv = inventory.Server{
			Name:         "pg-lock-server",
			IPAddress:    "192.0.2.20",
			Status:       inventory.ServerFree,
			CapacityMode: inventory.CapacityLow,
			MaxDomains:   inventory.SlotsFor(inventory.CapacityLow),
		}
		return tx.CreateServer(ctx, &srv)
	}))

	const writers = 8
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			errs <- store.WithTx(ctx, func(tx Tx) error {
				cur, err := tx.GetServerForUpdate(ctx, srv.ID)
				if err != nil {
					return err
				}
				cur.CurrentDomains++
				return tx.UpdateServer(ctx, cur)
			})
		}()
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-errs)
	}

	got, err := store.GetServer(ctx, srv.ID)
	require.NoError(t, err)
	require.Equal(t, writers, got.CurrentDomains)
}
