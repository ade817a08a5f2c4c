package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/repository"
)

// DistributionMode selects how the planner spreads domains over servers.
type DistributionMode string

const (
	// DistributeFill packs each server to capacity before moving on.
	DistributeFill DistributionMode = "fill_first"
	// DistributeEven round-robins domains across eligible servers.
	DistributeEven DistributionMode = "even"
)

// Valid reports whether m is a known distribution mode.
func (m DistributionMode) Valid() bool {
	return m == DistributeFill || m == DistributeEven
}

// PlannedPair is one (domain, server) decision of a plan.
type PlannedPair struct {
	DomainID int64 `json:"domain_id"`
	ServerID int64 `json:"server_id"`
}

// Plan is a pure description of intended placements. Domains that did not
// fit anywhere are listed as unplaced.
type Plan struct {
	Pairs    []PlannedPair `json:"pairs"`
	Unplaced []int64       `json:"unplaced"`
}

// BuildPlan computes placements without touching any state. Candidates
// with no remaining slots or an active lock are skipped. The returned
// plan never exceeds any server's remaining capacity.
func BuildPlan(domainIDs []int64, candidates []*inventory.Server, mode DistributionMode) *Plan {
	eligible := make([]*inventory.Server, 0, len(candidates))
	remaining := make(map[int64]int, len(candidates))
	for _, srv := range candidates {
		slots := inventory.RemainingSlots(srv)
		if slots == 0 || srv.Locked() {
			continue
		}
		eligible = append(eligible, srv)
		remaining[srv.ID] = slots
	}

	plan := &Plan{}
	if len(eligible) == 0 {
		plan.Unplaced = append(plan.Unplaced, domainIDs...)
		return plan
	}

	switch mode {
	case DistributeEven:
		sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
		idx := 0
		for _, domainID := range domainIDs {
			placed := false
			for tries := 0; tries < len(eligible); tries++ {
				srv := eligible[idx%len(eligible)]
				idx++
				if remaining[srv.ID] == 0 {
					continue
				}
				remaining[srv.ID]--
				plan.Pairs = append(plan.Pairs, PlannedPair{DomainID: domainID, ServerID: srv.ID})
				placed = true
				break
			}
			if !placed {
				plan.Unplaced = append(plan.Unplaced, domainID)
			}
		}
	default:
		sort.SliceStable(eligible, func(i, j int) bool {
			if remaining[eligible[i].ID] != remaining[eligible[j].ID] {
				return remaining[eligible[i].ID] > remaining[eligible[j].ID]
			}
			return eligible[i].ID < eligible[j].ID
		})
		cursor := 0
		for _, domainID := range domainIDs {
			for cursor < len(eligible) && remaining[eligible[cursor].ID] == 0 {
				cursor++
			}
			if cursor == len(eligible) {
				plan.Unplaced = append(plan.Unplaced, domainID)
				continue
			}
			srv := eligible[cursor]
			remaining[srv.ID]--
			plan.Pairs = append(plan.Pairs, PlannedPair{DomainID: domainID, ServerID: srv.ID})
		}
	}
	return plan
}

// AutoAssignRequest parameterizes one planner run.
type AutoAssignRequest struct {
	DomainIDs    []int64                `json:"domain_ids"`
	Mode         DistributionMode       `json:"mode"`
	CapacityMode inventory.CapacityMode `json:"capacity_mode,omitempty"`
	GroupID      *int64                 `json:"group_id,omitempty"`
}

// PlannerService turns placement plans into ledger writes.
type PlannerService struct {
	store  repository.Store
	ledger *AssignmentService
}

// NewPlannerService creates the planner backed by the given ledger.
func NewPlannerService(store repository.Store, ledger *AssignmentService) *PlannerService {
	return &PlannerService{store: store, ledger: ledger}
}

// AutoAssign plans placements for the requested domains and executes the
// plan through the ledger, one triple per pair. Capacity races between
// planning and execution surface as failed domains, never as violations.
func (p *PlannerService) AutoAssign(ctx context.Context, req AutoAssignRequest, actor string) (*AutoAssignResult, error) {
	if len(req.DomainIDs) == 0 {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "no domains requested")
	}
	mode := req.Mode
	if mode == "" {
		mode = DistributeFill
	}
	if !mode.Valid() {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown distribution mode")
	}

	filter := repository.ServerFilter{AvailableOnly: true, Unlocked: true, GroupID: req.GroupID}
	candidates, _, err := p.store.ListServers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if req.CapacityMode != "" {
		filtered := candidates[:0]
		for _, srv := range candidates {
			if srv.CapacityMode == req.CapacityMode {
				filtered = append(filtered, srv)
			}
		}
		candidates = filtered
	}

	plan := BuildPlan(req.DomainIDs, candidates, mode)

	res := &AutoAssignResult{}
	res.FailedDomainIDs = append(res.FailedDomainIDs, plan.Unplaced...)
	used := make(map[int64]struct{})
	for _, pair := range plan.Pairs {
		a, err := p.ledger.Assign(ctx, pair.DomainID, pair.ServerID, actor)
		if err != nil {
			if _, ok := apperrors.IsAppError(err); ok {
				res.FailedDomainIDs = append(res.FailedDomainIDs, pair.DomainID)
				continue
			}
			return nil, err
		}
		res.Created = append(res.Created, a)
		used[pair.ServerID] = struct{}{}
	}
	res.ServersUsed = len(used)

	logger.Info("auto assignment completed",
		zap.String("mode", string(mode)),
		zap.Int("requested", len(req.DomainIDs)),
		zap.Int("created", len(res.Created)),
		zap.Int("failed", len(res.FailedDomainIDs)),
		zap.Int("servers_used", res.ServersUsed),
		zap.String("actor", actor),
	)
	return res, nil
}
