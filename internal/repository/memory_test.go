package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestMemoryStore_TxRollbackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateServer(ctx, &inventory.Server{Name: "a", IPAddress: "10.0.0.1"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, total, err := store.ListServers(ctx, ServerFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestMemoryStore_TxCommitIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var srv inventory.Server
	var d inventory.Domain
	err := store.WithTx(ctx, func(tx Tx) error {
		srv = inventory.Server{Name: "a", IPAddress: "10.0.0.1", MaxDomains: 5}
		if err := tx.CreateServer(ctx, &srv); err != nil {
			return err
		}
		d = inventory.Domain{Name: "example.com", Status: inventory.DomainFree}
		if err := tx.CreateDomain(ctx, &d); err != nil {
			return err
		}
		return tx.InsertAssignment(ctx, &inventory.Assignment{DomainID: d.ID, ServerID: srv.ID})
	})
	require.NoError(t, err)

	list, err := store.ListAssignments(ctx, AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "example.com", list[0].DomainName)
}

func TestMemoryStore_ReadsAreIsolatedCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	srv := &inventory.Server{Name: "a", IPAddress: "10.0.0.1"}
	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateServer(ctx, srv)
	}))

	got, err := store.GetServer(ctx, srv.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := store.GetServer(ctx, srv.ID)
	require.NoError(t, err)
	require.Equal(t, "a", again.Name)
}

func TestMemoryStore_UniqueAssignmentPerDomain(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var srv inventory.Server
	var d inventory.Domain
	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		srv = inventory.Server{Name: "a", IPAddress: "10.0.0.1", MaxDomains: 5}
		if err := tx.CreateServer(ctx, &srv); err != nil {
			return err
		}
		d = inventory.Domain{Name: "example.com"}
		if err := tx.CreateDomain(ctx, &d); err != nil {
			return err
		}
		return tx.InsertAssignment(ctx, &inventory.Assignment{DomainID: d.ID, ServerID: srv.ID})
	}))

	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertAssignment(ctx, &inventory.Assignment{DomainID: d.ID, ServerID: srv.ID})
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeDomainAlreadyAssigned))
}

func TestMemoryStore_Pagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		for i := 0; i < 5; i++ {
			s := &inventory.Server{
				Name:      fmt.Sprintf("srv-%d", i),
				IPAddress: fmt.Sprintf("10.0.0.%d", i),
			}
			if err := tx.CreateServer(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}))

	page, total, err := store.ListServers(ctx, ServerFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, page, 2)
	require.Equal(t, "srv-2", page[0].Name)

	last, _, err := store.ListServers(ctx, ServerFilter{Page: 3, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, last, 1)

	beyond, _, err := store.ListServers(ctx, ServerFilter{Page: 9, PerPage: 2})
	require.NoError(t, err)
	require.Empty(t, beyond)
}
