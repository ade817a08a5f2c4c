// Package repository provides the persistence layer for the domain hub.
//
// Two implementations exist: PostgresStore (pgx, production) and
// MemoryStore (tests). Both guarantee that a WithTx body observes and
// mutates a consistent snapshot: the read-check-write sequences of the
// assignment ledger and the lock registry are atomic end to end.
package repository

import (
	"context"

	"domainhub.io/hubd/internal/inventory"
)

// ServerFilter narrows server list reads. PerPage 0 disables pagination.
type ServerFilter struct {
	Status        *inventory.ServerStatus
	GroupID       *int64
	Ungrouped     bool
	AvailableOnly bool
	Unlocked      bool
	Page          int
	PerPage       int
}

// DomainFilter narrows domain list reads. PerPage 0 disables pagination.
type DomainFilter struct {
	Status  *inventory.DomainStatus
	Search  string
	Tag     string
	Page    int
	PerPage int
}

// AssignmentFilter narrows assignment list reads. Results carry the
// joined domain/server display fields.
type AssignmentFilter struct {
	ServerID *int64
	DomainID *int64
	GroupID  *int64
}

// Tx is the mutation surface of the store. Every method sees the
// transaction's own snapshot; Get*ForUpdate additionally takes the
// row-level write lock that serializes concurrent read-check-write
// sequences on the same row.
type Tx interface {
	CreateServer(ctx context.Context, s *inventory.Server) error
	GetServerForUpdate(ctx context.Context, id int64) (*inventory.Server, error)
	GetServerByIP(ctx context.Context, ip string) (*inventory.Server, error)
	UpdateServer(ctx context.Context, s *inventory.Server) error
	DeleteServer(ctx context.Context, id int64) error

	CreateDomain(ctx context.Context, d *inventory.Domain) error
	GetDomainForUpdate(ctx context.Context, id int64) (*inventory.Domain, error)
	GetDomainByName(ctx context.Context, name string) (*inventory.Domain, error)
	UpdateDomain(ctx context.Context, d *inventory.Domain) error
	DeleteDomain(ctx context.Context, id int64) error

	InsertAssignment(ctx context.Context, a *inventory.Assignment) error
	GetAssignmentForUpdate(ctx context.Context, id int64) (*inventory.Assignment, error)
	GetAssignmentByDomain(ctx context.Context, domainID int64) (*inventory.Assignment, error)
	ListAssignmentsByServer(ctx context.Context, serverID int64) ([]*inventory.Assignment, error)
	DeleteAssignment(ctx context.Context, id int64) error

	CreateGroup(ctx context.Context, g *inventory.ServerGroup) error
	GetGroupForUpdate(ctx context.Context, id int64) (*inventory.ServerGroup, error)
	UpdateGroup(ctx context.Context, g *inventory.ServerGroup) error
	DeleteGroup(ctx context.Context, id int64) error
}

// Store is the authoritative transactional store.
type Store interface {
	// WithTx runs fn inside one store transaction. The effects of fn are
	// applied atomically: on error none of them survive. Transaction-level
	// failures are retried once; repeated failure surfaces as
	// STORE_UNAVAILABLE. Application errors returned by fn are never
	// retried.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetServer(ctx context.Context, id int64) (*inventory.Server, error)
	ListServers(ctx context.Context, f ServerFilter) ([]*inventory.Server, int, error)

	GetDomain(ctx context.Context, id int64) (*inventory.Domain, error)
	ListDomains(ctx context.Context, f DomainFilter) ([]*inventory.Domain, int, error)

	GetAssignment(ctx context.Context, id int64) (*inventory.Assignment, error)
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]*inventory.Assignment, error)

	GetGroup(ctx context.Context, id int64) (*inventory.ServerGroup, error)
	ListGroups(ctx context.Context, page, perPage int) ([]*inventory.ServerGroup, int, error)
}
