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

// GroupService manages server groups. Group aggregates (member count,
// total capacity, total assignments) are always derived from the member
// servers at read time, never stored.
type GroupService struct {
	store  repository.Store
	broker *events.Broker
}

// NewGroupService creates the service.
func NewGroupService(store repository.Store, broker *events.Broker) *GroupService {
	return &GroupService{store: store, broker: broker}
}

// GroupInput carries the writable group fields.
type GroupInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Create registers a new empty group.
func (s *GroupService) Create(ctx context.Context, in GroupInput, actor string) (*inventory.ServerGroup, error) {
	g := &inventory.ServerGroup{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Color:       in.Color,
		CreatedBy:   actor,
	}
	if g.Name == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "name is required")
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.CreateGroup(ctx, g)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("group created", zap.Int64("group_id", g.ID), zap.String("name", g.Name), zap.String("actor", actor))
	s.broker.Publish(events.Event{
		Channel: events.ChannelGroups,
		Action:  events.ActionCreated,
		Payload: map[string]interface{}{"group_id": g.ID, "name": g.Name, "user": actor},
	})
	return g, nil
}

// Update renames or re-describes a group.
func (s *GroupService) Update(ctx context.Context, id int64, in GroupInput, actor string) (*inventory.ServerGroup, error) {
	var g *inventory.ServerGroup

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetGroupForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			cur.Name = name
		}
		cur.Description = in.Description
		cur.Color = in.Color
		if err := tx.UpdateGroup(ctx, cur); err != nil {
			return err
		}
		g = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broker.Publish(events.Event{
		Channel: events.ChannelGroups,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"group_id": id, "user": actor},
	})
	return s.Get(ctx, g.ID)
}

// Delete removes a group. Member servers are detached, not deleted.
func (s *GroupService) Delete(ctx context.Context, id int64, actor string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetGroupForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.DeleteGroup(ctx, id)
	})
	if err != nil {
		return err
	}

	logger.Info("group deleted", zap.Int64("group_id", id), zap.String("actor", actor))
	s.broker.Publish(events.Event{
		Channel: events.ChannelGroups,
		Action:  events.ActionDeleted,
		Payload: map[string]interface{}{"group_id": id, "user": actor},
	})
	return nil
}

// Get returns one group with derived aggregates.
func (s *GroupService) Get(ctx context.Context, id int64) (*inventory.ServerGroup, error) {
	return s.store.GetGroup(ctx, id)
}

// List returns all groups with derived aggregates.
func (s *GroupService) List(ctx context.Context) ([]*inventory.ServerGroup, error) {
	groups, _, err := s.store.ListGroups(ctx, 0, 0)
	return groups, err
}

// Members returns the servers of a group.
func (s *GroupService) Members(ctx context.Context, id int64) ([]*inventory.Server, error) {
	if _, err := s.store.GetGroup(ctx, id); err != nil {
		return nil, err
	}
	servers, _, err := s.store.ListServers(ctx, repository.ServerFilter{GroupID: &id})
	return servers, err
}

// Ungrouped returns the servers not attached to any group.
func (s *GroupService) Ungrouped(ctx context.Context) ([]*inventory.Server, error) {
	servers, _, err := s.store.ListServers(ctx, repository.ServerFilter{Ungrouped: true})
	return servers, err
}

// MembershipResult reports a membership change; FailedServerIDs lists the
// requested servers that could not be processed.
type MembershipResult struct {
	Group           *inventory.ServerGroup `json:"group"`
	FailedServerIDs []int64                `json:"failed_server_ids"`
}

// AddServers attaches the listed servers to the group. Servers already in
// another group are moved; unknown servers are reported, not fatal.
func (s *GroupService) AddServers(ctx context.Context, id int64, serverIDs []int64, actor string) (*MembershipResult, error) {
	var added, failed []int64
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetGroupForUpdate(ctx, id); err != nil {
			return err
		}
		added, failed = nil, nil
		for _, serverID := range serverIDs {
			srv, err := tx.GetServerForUpdate(ctx, serverID)
			if err != nil {
				if apperrors.IsCode(err, apperrors.CodeServerNotFound) {
					failed = append(failed, serverID)
					continue
				}
				return err
			}
			srv.GroupID = &id
			if err := tx.UpdateServer(ctx, srv); err != nil {
				return err
			}
			added = append(added, serverID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMembership(id, added, actor)
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &MembershipResult{Group: g, FailedServerIDs: failed}, nil
}

// RemoveServers detaches the listed servers from the group.
func (s *GroupService) RemoveServers(ctx context.Context, id int64, serverIDs []int64, actor string) (*inventory.ServerGroup, error) {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetGroupForUpdate(ctx, id); err != nil {
			return err
		}
		for _, serverID := range serverIDs {
			srv, err := tx.GetServerForUpdate(ctx, serverID)
			if err != nil {
				return err
			}
			if srv.GroupID == nil || *srv.GroupID != id {
				continue
			}
			srv.GroupID = nil
			if err := tx.UpdateServer(ctx, srv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMembership(id, serverIDs, actor)
	return s.Get(ctx, id)
}

func (s *GroupService) publishMembership(groupID int64, serverIDs []int64, actor string) {
	s.broker.Publish(events.Event{
		Channel: events.ChannelGroups,
		Action:  events.ActionUpdated,
		Payload: map[string]interface{}{"group_id": groupID, "user": actor},
	})
	for _, serverID := range serverIDs {
		s.broker.Publish(events.Event{
			Channel: events.ChannelServers,
			Action:  events.ActionUpdated,
			Payload: map[string]interface{}{"server_id": serverID},
		})
	}
}
