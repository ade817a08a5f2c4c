package service

import (
	"context"

	"go.uber.org/zap"

	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/repository"
)

// AssignmentService is the ledger: the only writer of the assignment
// relation. Every mutation applies the triple (assignment row, domain
// status, server counter) as one atomic unit inside a store transaction
// holding the row locks for the full read-check-write sequence.
type AssignmentService struct {
	store  repository.Store
	broker *events.Broker
}

// NewAssignmentService creates the ledger.
func NewAssignmentService(store repository.Store, broker *events.Broker) *AssignmentService {
	return &AssignmentService{store: store, broker: broker}
}

// BulkResult reports the outcome of a bulk or auto assignment.
type BulkResult struct {
	Created         []*inventory.Assignment `json:"created"`
	FailedDomainIDs []int64                 `json:"failed_domain_ids"`
}

// AutoAssignResult extends BulkResult with the number of distinct servers
// the plan landed on.
type AutoAssignResult struct {
	BulkResult
	ServersUsed int `json:"servers_used"`
}

// Assign binds one free domain to a server with remaining capacity.
func (s *AssignmentService) Assign(ctx context.Context, domainID, serverID int64, actor string) (*inventory.Assignment, error) {
	a := &inventory.Assignment{DomainID: domainID, ServerID: serverID, AssignedBy: actor}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		srv, err := tx.GetServerForUpdate(ctx, serverID)
		if err != nil {
			return err
		}
		d, err := tx.GetDomainForUpdate(ctx, domainID)
		if err != nil {
			return err
		}

		if d.Status == inventory.DomainAssigned {
			return apperrors.ErrDomainAlreadyAssigned(domainID)
		}
		if !inventory.CanAccept(srv) {
			return apperrors.ErrServerAtCapacity(serverID)
		}

		if err := tx.InsertAssignment(ctx, a); err != nil {
			return err
		}
		a.DomainName = d.Name
		a.ServerName = srv.Name
		a.ServerIP = srv.IPAddress

		d.Status = inventory.DomainAssigned
		if err := tx.UpdateDomain(ctx, d); err != nil {
			return err
		}

		srv.CurrentDomains++
		srv.Status = inventory.StatusFor(srv.CurrentDomains)
		return tx.UpdateServer(ctx, srv)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("assignment created",
		zap.Int64("assignment_id", a.ID),
		zap.String("domain", a.DomainName),
		zap.String("server", a.ServerName),
		zap.String("actor", actor),
	)

	s.broker.Publish(events.Event{
		Channel: events.ChannelAssignments,
		Action:  events.ActionCreated,
		Payload: map[string]interface{}{
			"assignment_id": a.ID,
			"domain_id":     a.DomainID,
			"domain_name":   a.DomainName,
			"server_id":     a.ServerID,
			"server_name":   a.ServerName,
			"user":          actor,
		},
	})
	s.publishEntityUpdated(a.ServerID, a.DomainID)
	return a, nil
}

// BulkAssign binds each listed domain to the server, in input order, each
// against the capacity remaining at its turn. Per-item ledger failures
// are recorded, never fatal to the batch.
func (s *AssignmentService) BulkAssign(ctx context.Context, domainIDs []int64, serverID int64, actor string) (*BulkResult, error) {
	res := &BulkResult{}
	for _, domainID := range domainIDs {
		a, err := s.Assign(ctx, domainID, serverID, actor)
		if err != nil {
			if _, ok := apperrors.IsAppError(err); ok {
				res.FailedDomainIDs = append(res.FailedDomainIDs, domainID)
				continue
			}
			return nil, err
		}
		res.Created = append(res.Created, a)
	}

	logger.Info("bulk assignment completed",
		zap.Int64("server_id", serverID),
		zap.Int("success", len(res.Created)),
		zap.Int("failed", len(res.FailedDomainIDs)),
		zap.String("actor", actor),
	)
	return res, nil
}

// Unassign deletes one assignment, reversing the triple.
func (s *AssignmentService) Unassign(ctx context.Context, assignmentID int64, actor string) error {
	var removed *inventory.Assignment

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		removed = a
		return s.deleteTriple(ctx, tx, a)
	})
	if err != nil {
		return err
	}

	s.publishDeleted(removed, actor)
	return nil
}

// UnassignDomain deletes the active assignment of a domain, if any.
func (s *AssignmentService) UnassignDomain(ctx context.Context, domainID int64, actor string) error {
	var removed *inventory.Assignment

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAssignmentByDomain(ctx, domainID)
		if err != nil {
			return err
		}
		removed = a
		return s.deleteTriple(ctx, tx, a)
	})
	if err != nil {
		return err
	}

	s.publishDeleted(removed, actor)
	return nil
}

// UnassignAll removes every assignment of a server as one logical
// operation, emitting a single aggregated event plus per-domain updates.
func (s *AssignmentService) UnassignAll(ctx context.Context, serverID int64, actor string) (int, error) {
	var freed []int64

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		srv, err := tx.GetServerForUpdate(ctx, serverID)
		if err != nil {
			return err
		}

		list, err := tx.ListAssignmentsByServer(ctx, serverID)
		if err != nil {
			return err
		}

		freed = freed[:0]
		for _, a := range list {
			d, err := tx.GetDomainForUpdate(ctx, a.DomainID)
			if err != nil {
				return err
			}
			d.Status = inventory.DomainFree
			if err := tx.UpdateDomain(ctx, d); err != nil {
				return err
			}
			if err := tx.DeleteAssignment(ctx, a.ID); err != nil {
				return err
			}
			freed = append(freed, a.DomainID)
		}

		srv.CurrentDomains = 0
		srv.Status = inventory.ServerFree
		return tx.UpdateServer(ctx, srv)
	})
	if err != nil {
		return 0, err
	}

	logger.Info("server fully unassigned",
		zap.Int64("server_id", serverID),
		zap.Int("count", len(freed)),
		zap.String("actor", actor),
	)

	s.broker.Publish(events.Event{
		Channel: events.ChannelAssignments,
		Action:  events.ActionBulkDeleted,
		Payload: map[string]interface{}{
			"server_id": serverID,
			"count":     len(freed),
			"user":      actor,
		},
	})
	for _, domainID := range freed {
		s.broker.Publish(events.Event{
			Channel: events.ChannelDomains,
			Action:  events.ActionUpdated,
			Payload: map[string]interface{}{"domain_id": domainID},
		})
	}
	s.broker.Publish(events.Event{
		Channel: events.ChannelServers,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"server_id": serverID},
	})
	return len(freed), nil
}

// List returns assignments with joined display fields.
func (s *AssignmentService) List(ctx context.Context, f repository.AssignmentFilter) ([]*inventory.Assignment, error) {
	return s.store.ListAssignments(ctx, f)
}

// deleteTriple reverses one assignment inside the caller's transaction.
// Rows are locked server first, then domain, the same order Assign takes
// them, so concurrent assign/unassign pairs cannot deadlock.
func (s *AssignmentService) deleteTriple(ctx context.Context, tx repository.Tx, a *inventory.Assignment) error {
	srv, err := tx.GetServerForUpdate(ctx, a.ServerID)
	if err != nil {
		return err
	}
	d, err := tx.GetDomainForUpdate(ctx, a.DomainID)
	if err != nil {
		return err
	}

	if err := tx.DeleteAssignment(ctx, a.ID); err != nil {
		return err
	}

	d.Status = inventory.DomainFree
	if err := tx.UpdateDomain(ctx, d); err != nil {
		return err
	}

	if srv.CurrentDomains > 0 {
		srv.CurrentDomains--
	}
	srv.Status = inventory.StatusFor(srv.CurrentDomains)
	return tx.UpdateServer(ctx, srv)
}

func (s *AssignmentService) publishDeleted(a *inventory.Assignment, actor string) {
	logger.Info("assignment deleted",
		zap.Int64("assignment_id", a.ID),
		zap.String("domain", a.DomainName),
		zap.String("server", a.ServerName),
		zap.String("actor", actor),
	)
	s.broker.Publish(events.Event{
		Channel: events.ChannelAssignments,
		Action:  events.ActionDeleted,
		Payload: map[string]interface{}{
			"assignment_id": a.ID,
			"domain_id":     a.DomainID,
			"domain_name":   a.DomainName,
			"server_id":     a.ServerID,
			"server_name":   a.ServerName,
			"user":          actor,
		},
	})
	s.publishEntityUpdated(a.ServerID, a.DomainID)
}

// publishEntityUpdated emits the implicit update events for the two
// endpoints whose counters/statuses changed with the assignment.
func (s *AssignmentService) publishEntityUpdated(serverID, domainID int64) {
	s.broker.Publish(events.Event{
		Channel: events.ChannelServers,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"server_id": serverID},
	})
	s.broker.Publish(events.Event{
		Channel: events.ChannelDomains,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"domain_id": domainID},
	})
}
