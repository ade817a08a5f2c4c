// Package service implements the application services of the domain hub:
// inventory CRUD, the advisory lock registry, the assignment ledger, the
// auto-assignment planner, grouping, exports and statistics.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/repository"
)

// LockState is the outcome of a lock operation.
type LockState struct {
	Kind     inventory.ResourceKind `json:"kind"`
	ID       int64                  `json:"id"`
	Locked   bool                   `json:"locked"`
	LockedBy string                 `json:"locked_by,omitempty"`
	LockedAt *time.Time             `json:"locked_at,omitempty"`
}

// LockRegistry manages the advisory per-resource locks carried on servers
// and domains. Locks signal intent to other operators; they are not a
// hard mutex on the underlying row and carry no expiry.
type LockRegistry struct {
	store  repository.Store
	broker *events.Broker
}

// NewLockRegistry creates the registry.
func NewLockRegistry(store repository.Store, broker *events.Broker) *LockRegistry {
	return &LockRegistry{store: store, broker: broker}
}

// Acquire takes the lock for principal. Re-acquiring a lock already held
// by the same principal is idempotent; a lock held by anyone else fails
// with LOCK_HELD.
func (r *LockRegistry) Acquire(ctx context.Context, kind inventory.ResourceKind, id int64, principal string) (*LockState, error) {
	return r.transition(ctx, kind, id, principal, func(holder string) (bool, error) {
		switch holder {
		case "", principal:
			return true, nil
		default:
			return false, apperrors.ErrLockHeld(holder)
		}
	})
}

// Release clears the lock. Releasing an unlocked resource succeeds;
// releasing a lock held by another principal fails with LOCK_HELD.
func (r *LockRegistry) Release(ctx context.Context, kind inventory.ResourceKind, id int64, principal string) (*LockState, error) {
	return r.transition(ctx, kind, id, principal, func(holder string) (bool, error) {
		switch holder {
		case "", principal:
			return false, nil
		default:
			return false, apperrors.ErrLockHeld(holder)
		}
	})
}

// Toggle acquires when unlocked, releases when held by the caller, and
// fails with LOCK_HELD when held by another principal.
func (r *LockRegistry) Toggle(ctx context.Context, kind inventory.ResourceKind, id int64, principal string) (*LockState, error) {
	return r.transition(ctx, kind, id, principal, func(holder string) (bool, error) {
		switch holder {
		case "":
			return true, nil
		case principal:
			return false, nil
		default:
			return false, apperrors.ErrLockHeld(holder)
		}
	})
}

// transition applies decide(current holder) -> want-locked under the row
// lock and emits the new lock state on success.
func (r *LockRegistry) transition(
	ctx context.Context,
	kind inventory.ResourceKind,
	id int64,
	principal string,
	decide func(holder string) (bool, error),
) (*LockState, error) {
	state := &LockState{Kind: kind, ID: id}

	err := r.store.WithTx(ctx, func(tx repository.Tx) error {
		switch kind {
		case inventory.KindServer:
			srv, err := tx.GetServerForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked, err := decide(srv.LockedBy)
			if err != nil {
				return err
			}
			applyLock(&srv.LockedBy, &srv.LockedAt, locked, principal)
			state.Locked, state.LockedBy, state.LockedAt = locked, srv.LockedBy, srv.LockedAt
			return tx.UpdateServer(ctx, srv)

		case inventory.KindDomain:
			d, err := tx.GetDomainForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked, err := decide(d.LockedBy)
			if err != nil {
				return err
			}
			applyLock(&d.LockedBy, &d.LockedAt, locked, principal)
			state.Locked, state.LockedBy, state.LockedAt = locked, d.LockedBy, d.LockedAt
			return tx.UpdateDomain(ctx, d)

		default:
			return apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown resource kind")
		}
	})
	if err != nil {
		return nil, err
	}

	action := events.ActionLockReleased
	if state.Locked {
		action = events.ActionLockAcquired
	}
	r.broker.Publish(events.Event{
		Channel: events.ChannelLocks,
		Action:  action,
		Payload: map[string]interface{}{
			"kind": string(kind),
			"id":   id,
			"by":   principal,
		},
	})

	logger.Debug("lock transition",
		zap.String("kind", string(kind)),
		zap.Int64("id", id),
		zap.Bool("locked", state.Locked),
		zap.String("principal", principal),
	)
	return state, nil
}

func applyLock(lockedBy *string, lockedAt **time.Time, locked bool, principal string) {
	if locked {
		now := time.Now().UTC()
		*lockedBy = principal
		*lockedAt = &now
		return
	}
	*lockedBy = ""
	*lockedAt = nil
}
