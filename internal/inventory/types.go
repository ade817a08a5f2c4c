// Package inventory defines the core domain model: servers with bounded
// domain capacity, domains, their assignments and server groups. It holds
// no storage or transport concerns.
package inventory

import (
	"strings"
	"time"
)

// CapacityMode names a server sizing tier. The tier fixes the number of
// domain slots; the slot count is denormalized onto the server row so
// capacity checks never need the tier table.
type CapacityMode string

const (
	CapacityLow    CapacityMode = "low"
	CapacityMedium CapacityMode = "medium"
	CapacityHigh   CapacityMode = "high"
)

// Valid reports whether m is a known mode.
func (m CapacityMode) Valid() bool {
	switch m {
	case CapacityLow, CapacityMedium, CapacityHigh:
		return true
	}
	return false
}

// ServerStatus is derived from the assignment counter, never set directly.
type ServerStatus string

const (
	ServerFree  ServerStatus = "free"
	ServerInUse ServerStatus = "in_use"
)

// DomainStatus flips between free and assigned only through the ledger.
type DomainStatus string

const (
	DomainFree     DomainStatus = "free"
	DomainAssigned DomainStatus = "assigned"
)

// ResourceKind discriminates lockable resources.
type ResourceKind string

const (
	KindServer ResourceKind = "server"
	KindDomain ResourceKind = "domain"
)

// Server is one capacity-bearing host.
type Server struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	IPAddress      string       `json:"ip_address"`
	Password       string       `json:"password,omitempty"`
	Status         ServerStatus `json:"status"`
	CapacityMode   CapacityMode `json:"capacity_mode"`
	MaxDomains     int          `json:"max_domains"`
	CurrentDomains int          `json:"current_domains"`

	IsCentralConfig  bool   `json:"is_central_config"`
	IndividualConfig string `json:"individual_config,omitempty"`
	CentralConfig    string `json:"central_config,omitempty"`

	Description string `json:"description,omitempty"`
	GroupID     *int64 `json:"group_id,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`

	LockedBy string     `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the server carries an advisory lock. Locks have
// no expiry; release is always explicit.
func (s *Server) Locked() bool {
	return s.LockedBy != ""
}

// Domain is one assignable name.
type Domain struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Status      DomainStatus `json:"status"`
	Tags        []string     `json:"tags"`
	Description string       `json:"description,omitempty"`
	CreatedBy   string       `json:"created_by,omitempty"`

	LockedBy string     `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the domain carries an advisory lock.
func (d *Domain) Locked() bool {
	return d.LockedBy != ""
}

// NormalizeDomainName canonicalizes a name for uniqueness: trimmed and
// lowercased, so casing variants collide.
func NormalizeDomainName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Assignment binds one domain to one server. A domain has at most one
// active assignment; the store enforces it with a unique constraint.
type Assignment struct {
	ID       int64 `json:"id"`
	DomainID int64 `json:"domain_id"`
	ServerID int64 `json:"server_id"`

	// Denormalized display fields, joined at read time.
	DomainName string `json:"domain_name,omitempty"`
	ServerName string `json:"server_name,omitempty"`
	ServerIP   string `json:"server_ip,omitempty"`

	AssignedBy string    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ServerGroup is a named collection of servers. Its aggregates are
// derived from members at read time, never stored.
type ServerGroup struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`

	ServerCount   int `json:"server_count"`
	TotalCapacity int `json:"total_capacity"`
	TotalDomains  int `json:"total_domains"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Aggregate recomputes the derived member totals from the given servers.
func (g *ServerGroup) Aggregate(servers []*Server) {
	g.ServerCount = 0
	g.TotalCapacity = 0
	g.TotalDomains = 0
	for _, s := range servers {
		if s.GroupID == nil || *s.GroupID != g.ID {
			continue
		}
		g.ServerCount++
		g.TotalCapacity += s.MaxDomains
		g.TotalDomains += s.CurrentDomains
	}
}
