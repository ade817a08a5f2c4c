package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"domainhub.io/hubd/internal/inventory"
	"domainhub.io/hubd/internal/repository"
)

// ExportService renders inventory snapshots into external formats. All
// exports are read-only and reflect the state at the moment of the call.
type ExportService struct {
	store repository.Store
}

// NewExportService creates the service.
func NewExportService(store repository.Store) *ExportService {
	return &ExportService{store: store}
}

// ExportScope narrows an export to one server or one group. Zero values
// mean the whole inventory.
type ExportScope struct {
	ServerID int64
	GroupID  int64
}

// DomainHub renders the plain-text feed consumed by downstream DNS
// tooling: one block per server holding assignments, the block header is
// "ip" or "ip password", followed by the server's domain names sorted
// ascending, blocks separated by a blank line. Servers without
// assignments are omitted.
func (s *ExportService) DomainHub(ctx context.Context, scope ExportScope) (string, error) {
	servers, err := s.scopedServers(ctx, scope)
	if err != nil {
		return "", err
	}

	var blocks []string
	for _, srv := range servers {
		assignments, err := s.store.ListAssignments(ctx, repository.AssignmentFilter{ServerID: &srv.ID})
		if err != nil {
			return "", err
		}
		if len(assignments) == 0 {
			continue
		}

		names := make([]string, 0, len(assignments))
		for _, a := range assignments {
			names = append(names, a.DomainName)
		}
		sort.Strings(names)

		header := srv.IPAddress
		if srv.Password != "" {
			header = fmt.Sprintf("%s %s", srv.IPAddress, srv.Password)
		}
		blocks = append(blocks, header+"\n"+strings.Join(names, "\n"))
	}
	if len(blocks) == 0 {
		return "", nil
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}

// CSV renders every assignment as a CSV document, newest first.
func (s *ExportService) CSV(ctx context.Context) ([]byte, error) {
	assignments, err := s.store.ListAssignments(ctx, repository.AssignmentFilter{})
	if err != nil {
		return nil, err
	}
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].AssignedAt.Equal(assignments[j].AssignedAt) {
			return assignments[i].AssignedAt.After(assignments[j].AssignedAt)
		}
		return assignments[i].ID > assignments[j].ID
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"domain_name", "server_name", "server_ip", "assigned_at", "assigned_by"}); err != nil {
		return nil, err
	}
	for _, a := range assignments {
		record := []string{
			a.DomainName,
			a.ServerName,
			a.ServerIP,
			a.AssignedAt.UTC().Format(time.RFC3339),
			a.AssignedBy,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ServerConfigExport is the JSON bundle for provisioning one server.
type ServerConfigExport struct {
	Server struct {
		ID              int64                  `json:"id"`
		Name            string                 `json:"name"`
		IPAddress       string                 `json:"ip_address"`
		Password        string                 `json:"password,omitempty"`
		CapacityMode    inventory.CapacityMode `json:"capacity_mode"`
		IsCentralConfig bool                   `json:"is_central_config"`
	} `json:"server"`
	IndividualConfig string   `json:"individual_config,omitempty"`
	CentralConfig    string   `json:"central_config,omitempty"`
	Domains          []string `json:"domains"`
	Stats            struct {
		MaxDomains     int     `json:"max_domains"`
		CurrentDomains int     `json:"current_domains"`
		RemainingSlots int     `json:"remaining_slots"`
		Utilization    float64 `json:"utilization_percent"`
	} `json:"stats"`
	ExportedAt time.Time `json:"exported_at"`
}

// ServerConfig bundles one server's connection data, config blobs and
// sorted domain list for provisioning tooling.
func (s *ExportService) ServerConfig(ctx context.Context, serverID int64) (*ServerConfigExport, error) {
	srv, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, repository.AssignmentFilter{ServerID: &serverID})
	if err != nil {
		return nil, err
	}

	out := &ServerConfigExport{ExportedAt: time.Now().UTC()}
	out.Server.ID = srv.ID
	out.Server.Name = srv.Name
	out.Server.IPAddress = srv.IPAddress
	out.Server.Password = srv.Password
	out.Server.CapacityMode = srv.CapacityMode
	out.Server.IsCentralConfig = srv.IsCentralConfig
	out.IndividualConfig = srv.IndividualConfig
	out.CentralConfig = srv.CentralConfig
	out.Domains = make([]string, 0, len(assignments))
	for _, a := range assignments {
		out.Domains = append(out.Domains, a.DomainName)
	}
	sort.Strings(out.Domains)
	out.Stats.MaxDomains = srv.MaxDomains
	out.Stats.CurrentDomains = srv.CurrentDomains
	out.Stats.RemainingSlots = inventory.RemainingSlots(srv)
	out.Stats.Utilization = inventory.UtilizationPercent(srv)
	return out, nil
}

func (s *ExportService) scopedServers(ctx context.Context, scope ExportScope) ([]*inventory.Server, error) {
	if scope.ServerID != 0 {
		srv, err := s.store.GetServer(ctx, scope.ServerID)
		if err != nil {
			return nil, err
		}
		return []*inventory.Server{srv}, nil
	}
	filter := repository.ServerFilter{}
	if scope.GroupID != 0 {
		if _, err := s.store.GetGroup(ctx, scope.GroupID); err != nil {
			return nil, err
		}
		filter.GroupID = &scope.GroupID
	}
	servers, _, err := s.store.ListServers(ctx, filter)
	return servers, err
}
