package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/repository"
)

// DomainService owns the domain inventory. Domain status flips between
// free and assigned only through the ledger.
type DomainService struct {
	store  repository.Store
	broker *events.Broker
}

// NewDomainService creates the service.
func NewDomainService(store repository.Store, broker *events.Broker) *DomainService {
	return &DomainService{store: store, broker: broker}
}

// CreateDomainInput carries the writable domain fields.
type CreateDomainInput struct {
	Name        string   `json:"name" binding:"required"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// UpdateDomainInput carries partial updates; nil fields are untouched.
type UpdateDomainInput struct {
	Name        *string   `json:"name"`
	Tags        *[]string `json:"tags"`
	Description *string   `json:"description"`
}

// Create registers a new free domain. Names are normalized before the
// uniqueness check so casing variants collide.
func (s *DomainService) Create(ctx context.Context, in CreateDomainInput, actor string) (*inventory.Domain, error) {
	name := inventory.NormalizeDomainName(in.Name)
	if name == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "name is required")
	}

	d := &inventory.Domain{
		Name:        name,
		Status:      inventory.DomainFree,
		Tags:        in.Tags,
		Description: in.Description,
		CreatedBy:   actor,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.CreateDomain(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("domain created", zap.Int64("domain_id", d.ID), zap.String("name", d.Name), zap.String("actor", actor))
	s.broker.Publish(events.Event{
		Channel: events.ChannelDomains,
		Action:  events.ActionCreated,
		Payload: map[string]interface{}{"domain_id": d.ID, "name": d.Name, "user": actor},
	})
	return d, nil
}

// Update applies a partial update.
func (s *DomainService) Update(ctx context.Context, id int64, in UpdateDomainInput, actor string) (*inventory.Domain, error) {
	var d *inventory.Domain

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetDomainForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Locked() && cur.LockedBy != actor {
			return apperrors.ErrLockHeld(cur.LockedBy)
		}

		if in.Name != nil {
			name := inventory.NormalizeDomainName(*in.Name)
			if name == "" {
				return apperrors.BadRequest(apperrors.CodeValidationFailed, "name is required")
			}
			cur.Name = name
		}
		if in.Tags != nil {
			cur.Tags = *in.Tags
			if cur.Tags == nil {
				cur.Tags = []string{}
			}
		}
		if in.Description != nil {
			cur.Description = *in.Description
		}

		if err := tx.UpdateDomain(ctx, cur); err != nil {
			return err
		}
		d = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("domain updated", zap.Int64("domain_id", id), zap.String("actor", actor))
	s.broker.Publish(events.Event{
		Channel: events.ChannelDomains,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"domain_id": id, "user": actor},
	})
	return d, nil
}

// Delete removes an unassigned domain.
func (s *DomainService) Delete(ctx context.Context, id int64, actor string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetDomainForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Locked() && cur.LockedBy != actor {
			return apperrors.ErrLockHeld(cur.LockedBy)
		}
		if cur.Status == inventory.DomainAssigned {
			return apperrors.ErrReferentialConflict("domain is assigned to a server")
		}
		return tx.DeleteDomain(ctx, id)
	})
	if err != nil {
		return err
	}

	logger.Info("domain deleted", zap.Int64("domain_id", id), zap.String("actor", actor))
	s.broker.Publish(events.Event{
		Channel: events.ChannelDomains,
		Action:  events.ActionDeleted,
		Payload: map[string]interface{}{"domain_id": id, "user": actor},
	})
	return nil
}

// Get returns one domain.
func (s *DomainService) Get(ctx context.Context, id int64) (*inventory.Domain, error) {
	return s.store.GetDomain(ctx, id)
}

// List returns domains matching the filter plus the unpaginated total.
func (s *DomainService) List(ctx context.Context, f repository.DomainFilter) ([]*inventory.Domain, int, error) {
	return s.store.ListDomains(ctx, f)
}

// BulkDomainResult reports one bulk domain import.
type BulkDomainResult struct {
	Created []*inventory.Domain `json:"created"`
	Skipped []string            `json:"skipped"`
}

// BulkImport parses plain text, one domain name per line. Names are
// normalized; duplicates within the input or against existing domains
// are skipped.
func (s *DomainService) BulkImport(ctx context.Context, text string, tags []string, actor string) (*BulkDomainResult, error) {
	if tags == nil {
		tags = []string{}
	}

	res := &BulkDomainResult{}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		name := inventory.NormalizeDomainName(line)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		seen[name] = struct{}{}

		d := &inventory.Domain{
			Name:      name,
			Status:    inventory.DomainFree,
			Tags:      tags,
			CreatedBy: actor,
		}
		err := s.store.WithTx(ctx, func(tx repository.Tx) error {
			return tx.CreateDomain(ctx, d)
		})
		if err != nil {
			if _, ok := apperrors.IsAppError(err); ok {
				res.Skipped = append(res.Skipped, name)
				continue
			}
			return nil, err
		}
		res.Created = append(res.Created, d)
	}

	logger.Info("bulk domain import",
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
		zap.String("actor", actor),
	)
	if len(res.Created) > 0 {
		s.broker.Publish(events.Event{
			Channel: events.ChannelDomains,
			Action:  events.ActionBulkCreated,
			Payload: map[string]interface{}{"count": len(res.Created), "user": actor},
		})
	}
	return res, nil
}
