package service

import (
	"context"
	"sort"

	"domainhub.io/hubd/internal/inventory"
	"domainhub.io/hubd/internal/repository"
)

// Stats summarizes the whole inventory in one snapshot.
type Stats struct {
	Servers struct {
		Total  int `json:"total"`
		Free   int `json:"free"`
		InUse  int `json:"in_use"`
		Locked int `json:"locked"`
	} `json:"servers"`
	Domains struct {
		Total    int `json:"total"`
		Free     int `json:"free"`
		Assigned int `json:"assigned"`
		Locked   int `json:"locked"`
	} `json:"domains"`
	Assignments struct {
		Total int `json:"total"`
	} `json:"assignments"`
	Capacity struct {
		TotalSlots     int     `json:"total_slots"`
		UsedSlots      int     `json:"used_slots"`
		RemainingSlots int     `json:"remaining_slots"`
		Utilization    float64 `json:"utilization_percent"`
	} `json:"capacity"`
	Modes map[inventory.CapacityMode]*ModeBucket `json:"modes"`
}

// ModeBucket aggregates servers sharing a capacity mode.
type ModeBucket struct {
	Servers     int     `json:"servers"`
	TotalSlots  int     `json:"total_slots"`
	UsedSlots   int     `json:"used_slots"`
	Utilization float64 `json:"utilization_percent"`
}

// ServerCapacity is one row of the capacity report.
type ServerCapacity struct {
	ServerID       int64                  `json:"server_id"`
	ServerName     string                 `json:"server_name"`
	IPAddress      string                 `json:"ip_address"`
	CapacityMode   inventory.CapacityMode `json:"capacity_mode"`
	MaxDomains     int                    `json:"max_domains"`
	CurrentDomains int                    `json:"current_domains"`
	RemainingSlots int                    `json:"remaining_slots"`
	Utilization    float64                `json:"utilization_percent"`
	Locked         bool                   `json:"locked"`
}

// CapacityReport lists per-server occupancy, fullest first.
type CapacityReport struct {
	Servers        []*ServerCapacity `json:"servers"`
	TotalSlots     int               `json:"total_slots"`
	UsedSlots      int               `json:"used_slots"`
	RemainingSlots int               `json:"remaining_slots"`
}

// StatsService computes read-only aggregates over the inventory.
type StatsService struct {
	store repository.Store
}

// NewStatsService creates the aggregator.
func NewStatsService(store repository.Store) *StatsService {
	return &StatsService{store: store}
}

// Overview returns the global stats snapshot.
func (s *StatsService) Overview(ctx context.Context) (*Stats, error) {
	servers, _, err := s.store.ListServers(ctx, repository.ServerFilter{})
	if err != nil {
		return nil, err
	}
	domains, _, err := s.store.ListDomains(ctx, repository.DomainFilter{})
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, repository.AssignmentFilter{})
	if err != nil {
		return nil, err
	}

	st := &Stats{Modes: make(map[inventory.CapacityMode]*ModeBucket)}
	st.Servers.Total = len(servers)
	for _, srv := range servers {
		if srv.Status == inventory.ServerInUse {
			st.Servers.InUse++
		} else {
			st.Servers.Free++
		}
		if srv.Locked() {
			st.Servers.Locked++
		}
		st.Capacity.TotalSlots += srv.MaxDomains
		st.Capacity.UsedSlots += srv.CurrentDomains

		bucket := st.Modes[srv.CapacityMode]
		if bucket == nil {
			bucket = &ModeBucket{}
			st.Modes[srv.CapacityMode] = bucket
		}
		bucket.Servers++
		bucket.TotalSlots += srv.MaxDomains
		bucket.UsedSlots += srv.CurrentDomains
	}
	for _, bucket := range st.Modes {
		if bucket.TotalSlots > 0 {
			bucket.Utilization = float64(bucket.UsedSlots) / float64(bucket.TotalSlots) * 100
		}
	}
	st.Domains.Total = len(domains)
	for _, d := range domains {
		if d.Status == inventory.DomainAssigned {
			st.Domains.Assigned++
		} else {
			st.Domains.Free++
		}
		if d.Locked() {
			st.Domains.Locked++
		}
	}
	st.Assignments.Total = len(assignments)
	st.Capacity.RemainingSlots = st.Capacity.TotalSlots - st.Capacity.UsedSlots
	if st.Capacity.TotalSlots > 0 {
		st.Capacity.Utilization = float64(st.Capacity.UsedSlots) / float64(st.Capacity.TotalSlots) * 100
	}
	return st, nil
}

// Capacity returns the per-server capacity report.
func (s *StatsService) Capacity(ctx context.Context) (*CapacityReport, error) {
	servers, _, err := s.store.ListServers(ctx, repository.ServerFilter{})
	if err != nil {
		return nil, err
	}

	report := &CapacityReport{Servers: make([]*ServerCapacity, 0, len(servers))}
	for _, srv := range servers {
		row := &ServerCapacity{
			ServerID:       srv.ID,
			ServerName:     srv.Name,
			IPAddress:      srv.IPAddress,
			CapacityMode:   srv.CapacityMode,
			MaxDomains:     srv.MaxDomains,
			CurrentDomains: srv.CurrentDomains,
			RemainingSlots: inventory.RemainingSlots(srv),
			Utilization:    inventory.UtilizationPercent(srv),
			Locked:         srv.Locked(),
		}
		report.Servers = append(report.Servers, row)
		report.TotalSlots += srv.MaxDomains
		report.UsedSlots += srv.CurrentDomains
	}
	report.RemainingSlots = report.TotalSlots - report.UsedSlots

	sort.SliceStable(report.Servers, func(i, j int) bool {
		if report.Servers[i].Utilization != report.Servers[j].Utilization {
			return report.Servers[i].Utilization > report.Servers[j].Utilization
		}
		return report.Servers[i].ServerID < report.Servers[j].ServerID
	})
	return report, nil
}
