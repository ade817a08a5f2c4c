package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/repository"
)

// ServerService owns the server inventory. Assignment counters on servers
// are written only by the ledger; this service treats them as read-only
// except for the capacity-mode invariant it enforces on updates.
type ServerService struct {
	store  repository.Store
	broker *events.Broker
}

// NewServerService creates the service.
func NewServerService(store repository.Store, broker *events.Broker) *ServerService {
	return &ServerService{store: store, broker: broker}
}

// CreateServerInput carries the writable server fields.
type CreateServerInput struct {
	Name             string                 `json:"name" binding:"required"`
	IPAddress        string                 `json:"ip_address" binding:"required"`
	Password         string                 `json:"password"`
	CapacityMode     inventory.CapacityMode `json:"capacity_mode"`
	IsCentralConfig  bool                   `json:"is_central_config"`
	IndividualConfig string                 `json:"individual_config"`
	CentralConfig    string                 `json:"central_config"`
	Description      string                 `json:"description"`
	GroupID          *int64                 `json:"group_id"`
}

// UpdateServerInput carries partial updates; nil fields are untouched.
type UpdateServerInput struct {
	Name             *string                 `json:"name"`
	IPAddress        *string                 `json:"ip_address"`
	Password         *string                 `json:"password"`
	CapacityMode     *inventory.CapacityMode `json:"capacity_mode"`
	IsCentralConfig  *bool                   `json:"is_central_config"`
	IndividualConfig *string                 `json:"individual_config"`
	CentralConfig    *string                 `json:"central_config"`
	Description      *string                 `json:"description"`
	GroupID          *int64                  `json:"group_id"`
	ClearGroup       bool                    `json:"clear_group"`
}

// Create registers a new server with zero assignments.
func (s *ServerService) Create(ctx context.Context, in CreateServerInput, actor string) (*inventory.Server, error) {
	mode := in.CapacityMode
	if mode == "" {
		mode = inventory.CapacityLow
	}
	if !mode.Valid() {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown capacity mode")
	}

	srv := &inventory.Server{
		Name:             strings.TrimSpace(in.Name),
		IPAddress:        strings.TrimSpace(in.IPAddress),
		Password:         in.Password,
		Status:           inventory.ServerFree,
		CapacityMode:     mode,
		MaxDomains:       inventory.SlotsFor(mode),
		IsCentralConfig:  in.IsCentralConfig,
		IndividualConfig: in.IndividualConfig,
		CentralConfig:    in.CentralConfig,
		Description:      in.Description,
		GroupID:          in.GroupID,
		CreatedBy:        actor,
	}
	if srv.Name == "" || srv.IPAddress == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "name and ip_address are required")
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if srv.GroupID != nil {
			if _, err := tx.GetGroupForUpdate(ctx, *srv.GroupID); err != nil {
				return err
			}
		}
		return tx.CreateServer(ctx, srv)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("server created",
		zap.Int64("server_id", srv.ID),
		zap.String("name", srv.Name),
		zap.String("capacity_mode", string(srv.CapacityMode)),
		zap.String("actor", actor),
	)
	s.broker.Publish(events.Event{
		Channel: events.ChannelServers,
		Action:  events.ActionCreated,
		Payload: map[string]interface{}{"server_id": srv.ID, "name": srv.Name, "user": actor},
	})
	return srv, nil
}

// Update applies a partial update. A capacity-mode change is rejected when
// the new slot count would fall below the live assignment counter.
func (s *ServerService) Update(ctx context.Context, id int64, in UpdateServerInput, actor string) (*inventory.Server, error) {
	var srv *inventory.Server

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetServerForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Locked() && cur.LockedBy != actor {
			return apperrors.ErrLockHeld(cur.LockedBy)
		}

		if in.Name != nil {
			cur.Name = strings.TrimSpace(*in.Name)
		}
		if in.IPAddress != nil {
			cur.IPAddress = strings.TrimSpace(*in.IPAddress)
		}
		if in.Password != nil {
			cur.Password = *in.Password
		}
		if in.CapacityMode != nil {
			mode := *in.CapacityMode
			if !mode.Valid() {
				return apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown capacity mode")
			}
			newMax := inventory.SlotsFor(mode)
			if newMax < cur.CurrentDomains {
				return apperrors.ErrCapacityViolation(cur.CurrentDomains, newMax)
			}
			cur.CapacityMode = mode
			cur.MaxDomains = newMax
		}
		if in.IsCentralConfig != nil {
			cur.IsCentralConfig = *in.IsCentralConfig
		}
		if in.IndividualConfig != nil {
			cur.IndividualConfig = *in.IndividualConfig
		}
		if in.CentralConfig != nil {
			cur.CentralConfig = *in.CentralConfig
		}
		if in.Description != nil {
			cur.Description = *in.Description
		}
		if in.ClearGroup {
			cur.GroupID = nil
		} else if in.GroupID != nil {
			if _, err := tx.GetGroupForUpdate(ctx, *in.GroupID); err != nil {
				return err
			}
			cur.GroupID = in.GroupID
		}

		if err := tx.UpdateServer(ctx, cur); err != nil {
			return err
		}
		srv = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("server updated", zap.Int64("server_id", id), zap.String("actor", actor))
	s.broker.Publish(events.Event{
		Channel: events.ChannelServers,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"server_id": id, "user": actor},
	})
	return srv, nil
}

// ToggleCentralConfig flips the central-config flag of a server.
func (s *ServerService) ToggleCentralConfig(ctx context.Context, id int64, actor string) (*inventory.Server, error) {
	var srv *inventory.Server

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetServerForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Locked() && cur.LockedBy != actor {
			return apperrors.ErrLockHeld(cur.LockedBy)
		}
		cur.IsCentralConfig = !cur.IsCentralConfig
		if err := tx.UpdateServer(ctx, cur); err != nil {
			return err
		}
		srv = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broker.Publish(events.Event{
		Channel: events.ChannelServers,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"server_id": id, "user": actor},
	})
	return srv, nil
}

// Delete removes a server with no active assignments.
func (s *ServerService) Delete(ctx context.Context, id int64, actor string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetServerForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Locked() && cur.LockedBy != actor {
			return apperrors.ErrLockHeld(cur.LockedBy)
		}
		if cur.CurrentDomains > 0 {
			return apperrors.ErrReferentialConflict("server still has assigned domains")
		}
		return tx.DeleteServer(ctx, id)
	})
	if err != nil {
		return err
	}

	logger.Info("server deleted", zap.Int64("server_id", id), zap.String("actor", actor))
	s.broker.Publish(events.Event{
		Channel: events.ChannelServers,
		Action:  events.ActionDeleted,
		Payload: map[string]interface{}{"server_id": id, "user": actor},
	})
	return nil
}

// Get returns one server.
func (s *ServerService) Get(ctx context.Context, id int64) (*inventory.Server, error) {
	return s.store.GetServer(ctx, id)
}

// List returns servers matching the filter plus the unpaginated total.
func (s *ServerService) List(ctx context.Context, f repository.ServerFilter) ([]*inventory.Server, int, error) {
	return s.store.ListServers(ctx, f)
}

// BulkImportResult reports one bulk text import.
type BulkImportResult struct {
	Created []*inventory.Server `json:"created"`
	Skipped []string            `json:"skipped"`
}

// BulkImport parses plain text lines of the form "IP" or "IP password",
// one server per line. Lines whose IP already exists, or repeats within
// the input, are skipped. Names are derived from the IP.
func (s *ServerService) BulkImport(ctx context.Context, text string, mode inventory.CapacityMode, actor string) (*BulkImportResult, error) {
	if mode == "" {
		mode = inventory.CapacityLow
	}
	if !mode.Valid() {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown capacity mode")
	}

	res := &BulkImportResult{}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		ip := fields[0]
		password := ""
		if len(fields) > 1 {
			password = fields[1]
		}
		if _, dup := seen[ip]; dup {
			res.Skipped = append(res.Skipped, ip)
			continue
		}
		seen[ip] = struct{}{}

		srv := &inventory.Server{
			Name:         fmt.Sprintf("server-%s", ip),
			IPAddress:    ip,
			Password:     password,
			Status:       inventory.ServerFree,
			CapacityMode: mode,
			MaxDomains:   inventory.SlotsFor(mode),
			CreatedBy:    actor,
		}
		err := s.store.WithTx(ctx, func(tx repository.Tx) error {
			if existing, err := tx.GetServerByIP(ctx, ip); err == nil && existing != nil {
				return apperrors.Conflict(apperrors.CodeNameTaken, "server ip already registered")
			} else if err != nil && !apperrors.IsCode(err, apperrors.CodeServerNotFound) {
				return err
			}
			return tx.CreateServer(ctx, srv)
		})
		if err != nil {
			if _, ok := apperrors.IsAppError(err); ok {
				res.Skipped = append(res.Skipped, ip)
				continue
			}
			return nil, err
		}
		res.Created = append(res.Created, srv)
	}

	logger.Info("bulk server import",
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
		zap.String("actor", actor),
	)
	if len(res.Created) > 0 {
		s.broker.Publish(events.Event{
			Channel: events.ChannelServers,
			Action:  events.ActionBulkCreated,
			Payload: map[string]interface{}{"count": len(res.Created), "user": actor},
		})
	}
	return res, nil
}
