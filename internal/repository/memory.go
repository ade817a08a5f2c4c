package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

// MemoryStore is an in-memory Store used by unit tests. Transactions are
// serialized under one mutex and run against a cloned snapshot, so a
// failed WithTx body leaves no partial effects — the same atomicity
// contract the Postgres store provides via row locks and rollback.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	seq         int64
	servers     map[int64]*inventory.Server
	domains     map[int64]*inventory.Domain
	assignments map[int64]*inventory.Assignment
	groups      map[int64]*inventory.ServerGroup
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		servers:     make(map[int64]*inventory.Server),
		domains:     make(map[int64]*inventory.Domain),
		assignments: make(map[int64]*inventory.Assignment),
		groups:      make(map[int64]*inventory.ServerGroup),
	}}
}

var _ Store = (*MemoryStore)(nil)

func copyServer(s *inventory.Server) *inventory.Server {
	c := *s
	if s.GroupID != nil {
		gid := *s.GroupID
		c.GroupID = &gid
	}
	if s.LockedAt != nil {
		at := *s.LockedAt
		c.LockedAt = &at
	}
	return &c
}

func copyDomain(d *inventory.Domain) *inventory.Domain {
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	if d.LockedAt != nil {
		at := *d.LockedAt
		c.LockedAt = &at
	}
	return &c
}

func copyAssignment(a *inventory.Assignment) *inventory.Assignment {
	c := *a
	return &c
}

func copyGroup(g *inventory.ServerGroup) *inventory.ServerGroup {
	c := *g
	return &c
}

func (st *memState) clone() *memState {
	c := &memState{
		seq:         st.seq,
		servers:     make(map[int64]*inventory.Server, len(st.servers)),
		domains:     make(map[int64]*inventory.Domain, len(st.domains)),
		assignments: make(map[int64]*inventory.Assignment, len(st.assignments)),
		groups:      make(map[int64]*inventory.ServerGroup, len(st.groups)),
	}
	for id, s := range st.servers {
		c.servers[id] = copyServer(s)
	}
	for id, d := range st.domains {
		c.domains[id] = copyDomain(d)
	}
	for id, a := range st.assignments {
		c.assignments[id] = copyAssignment(a)
	}
	for id, g := range st.groups {
		c.groups[id] = copyGroup(g)
	}
	return c
}

func (st *memState) nextID() int64 {
	st.seq++
	return st.seq
}

// WithTx serializes all mutations: fn runs against a snapshot that is
// only installed on success.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memTx{st: snapshot}); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

type memTx struct {
	st *memState
}

var _ Tx = (*memTx)(nil)

func (t *memTx) CreateServer(ctx context.Context, srv *inventory.Server) error {
	for _, existing := range t.st.servers {
		if existing.Name == srv.Name {
			return apperrors.Conflict(apperrors.CodeNameTaken, "server name already exists")
		}
	}
	now := time.Now().UTC()
	srv.ID = t.st.nextID()
	srv.CreatedAt = now
	srv.UpdatedAt = now
	t.st.servers[srv.ID] = copyServer(srv)
	return nil
}

func (t *memTx) GetServerForUpdate(ctx context.Context, id int64) (*inventory.Server, error) {
	srv, ok := t.st.servers[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
	}
	return copyServer(srv), nil
}

func (t *memTx) GetServerByIP(ctx context.Context, ip string) (*inventory.Server, error) {
	for _, srv := range t.st.servers {
		if srv.IPAddress == ip {
			return copyServer(srv), nil
		}
	}
	return nil, apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
}

func (t *memTx) UpdateServer(ctx context.Context, srv *inventory.Server) error {
	if _, ok := t.st.servers[srv.ID]; !ok {
		return apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
	}
	srv.UpdatedAt = time.Now().UTC()
	t.st.servers[srv.ID] = copyServer(srv)
	return nil
}

func (t *memTx) DeleteServer(ctx context.Context, id int64) error {
	if _, ok := t.st.servers[id]; !ok {
		return apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
	}
	delete(t.st.servers, id)
	return nil
}

func (t *memTx) CreateDomain(ctx context.Context, d *inventory.Domain) error {
	for _, existing := range t.st.domains {
		if existing.Name == d.Name {
			return apperrors.Conflict(apperrors.CodeNameTaken, "domain name already exists")
		}
	}
	now := time.Now().UTC()
	d.ID = t.st.nextID()
	d.CreatedAt = now
	d.UpdatedAt = now
	t.st.domains[d.ID] = copyDomain(d)
	return nil
}

func (t *memTx) GetDomainForUpdate(ctx context.Context, id int64) (*inventory.Domain, error) {
	d, ok := t.st.domains[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
	}
	return copyDomain(d), nil
}

func (t *memTx) GetDomainByName(ctx context.Context, name string) (*inventory.Domain, error) {
	name = inventory.NormalizeDomainName(name)
	for _, d := range t.st.domains {
		if d.Name == name {
			return copyDomain(d), nil
		}
	}
	return nil, apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
}

func (t *memTx) UpdateDomain(ctx context.Context, d *inventory.Domain) error {
	if _, ok := t.st.domains[d.ID]; !ok {
		return apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
	}
	d.UpdatedAt = time.Now().UTC()
	t.st.domains[d.ID] = copyDomain(d)
	return nil
}

func (t *memTx) DeleteDomain(ctx context.Context, id int64) error {
	if _, ok := t.st.domains[id]; !ok {
		return apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
	}
	delete(t.st.domains, id)
	return nil
}

func (t *memTx) join(a *inventory.Assignment) *inventory.Assignment {
	c := copyAssignment(a)
	if d, ok := t.st.domains[a.DomainID]; ok {
		c.DomainName = d.Name
	}
	if s, ok := t.st.servers[a.ServerID]; ok {
		c.ServerName = s.Name
		c.ServerIP = s.IPAddress
	}
	return c
}

func (t *memTx) InsertAssignment(ctx context.Context, a *inventory.Assignment) error {
	for _, existing := range t.st.assignments {
		if existing.DomainID == a.DomainID {
			return apperrors.ErrDomainAlreadyAssigned(a.DomainID)
		}
	}
	a.ID = t.st.nextID()
	a.AssignedAt = time.Now().UTC()
	t.st.assignments[a.ID] = copyAssignment(a)
	return nil
}

func (t *memTx) GetAssignmentForUpdate(ctx context.Context, id int64) (*inventory.Assignment, error) {
	a, ok := t.st.assignments[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
	}
	return t.join(a), nil
}

func (t *memTx) GetAssignmentByDomain(ctx context.Context, domainID int64) (*inventory.Assignment, error) {
	for _, a := range t.st.assignments {
		if a.DomainID == domainID {
			return t.join(a), nil
		}
	}
	return nil, apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
}

func (t *memTx) ListAssignmentsByServer(ctx context.Context, serverID int64) ([]*inventory.Assignment, error) {
	var out []*inventory.Assignment
	for _, a := range t.st.assignments {
		if a.ServerID == serverID {
			out = append(out, t.join(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) DeleteAssignment(ctx context.Context, id int64) error {
	if _, ok := t.st.assignments[id]; !ok {
		return apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
	}
	delete(t.st.assignments, id)
	return nil
}

func (t *memTx) CreateGroup(ctx context.Context, g *inventory.ServerGroup) error {
	for _, existing := range t.st.groups {
		if existing.Name == g.Name {
			return apperrors.Conflict(apperrors.CodeNameTaken, "group name already exists")
		}
	}
	now := time.Now().UTC()
	g.ID = t.st.nextID()
	g.CreatedAt = now
	g.UpdatedAt = now
	t.st.groups[g.ID] = copyGroup(g)
	return nil
}

func (t *memTx) GetGroupForUpdate(ctx context.Context, id int64) (*inventory.ServerGroup, error) {
	g, ok := t.st.groups[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
	}
	return copyGroup(g), nil
}

func (t *memTx) UpdateGroup(ctx context.Context, g *inventory.ServerGroup) error {
	if _, ok := t.st.groups[g.ID]; !ok {
		return apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
	}
	g.UpdatedAt = time.Now().UTC()
	t.st.groups[g.ID] = copyGroup(g)
	return nil
}

func (t *memTx) DeleteGroup(ctx context.Context, id int64) error {
	if _, ok := t.st.groups[id]; !ok {
		return apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
	}
	delete(t.st.groups, id)
	// Detach members, mirroring ON DELETE SET NULL.
	for _, srv := range t.st.servers {
		if srv.GroupID != nil && *srv.GroupID == id {
			srv.GroupID = nil
		}
	}
	return nil
}

// --- Read side ---

func (s *MemoryStore) GetServer(ctx context.Context, id int64) (*inventory.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv, ok := s.state.servers[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
	}
	return copyServer(srv), nil
}

func (s *MemoryStore) ListServers(ctx context.Context, f ServerFilter) ([]*inventory.Server, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*inventory.Server
	for _, srv := range s.state.servers {
		if f.Status != nil && srv.Status != *f.Status {
			continue
		}
		if f.GroupID != nil && (srv.GroupID == nil || *srv.GroupID != *f.GroupID) {
			continue
		}
		if f.Ungrouped && srv.GroupID != nil {
			continue
		}
		if f.AvailableOnly && !inventory.CanAccept(srv) {
			continue
		}
		if f.Unlocked && srv.Locked() {
			continue
		}
		all = append(all, copyServer(srv))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	return paginate(all, f.Page, f.PerPage), total, nil
}

func (s *MemoryStore) GetDomain(ctx context.Context, id int64) (*inventory.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.domains[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
	}
	return copyDomain(d), nil
}

func (s *MemoryStore) ListDomains(ctx context.Context, f DomainFilter) ([]*inventory.Domain, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var all []*inventory.Domain
	for _, d := range s.state.domains {
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(d.Name), search) &&
			!strings.Contains(strings.ToLower(d.Description), search) {
			continue
		}
		if f.Tag != "" && !containsTag(d.Tags, f.Tag) {
			continue
		}
		all = append(all, copyDomain(d))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	return paginate(all, f.Page, f.PerPage), total, nil
}

func (s *MemoryStore) GetAssignment(ctx context.Context, id int64) (*inventory.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.assignments[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
	}
	return (&memTx{st: s.state}).join(a), nil
}

func (s *MemoryStore) ListAssignments(ctx context.Context, f AssignmentFilter) ([]*inventory.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := &memTx{st: s.state}
	var out []*inventory.Assignment
	for _, a := range s.state.assignments {
		if f.ServerID != nil && a.ServerID != *f.ServerID {
			continue
		}
		if f.DomainID != nil && a.DomainID != *f.DomainID {
			continue
		}
		if f.GroupID != nil {
			srv, ok := s.state.servers[a.ServerID]
			if !ok || srv.GroupID == nil || *srv.GroupID != *f.GroupID {
				continue
			}
		}
		out = append(out, tx.join(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.After(out[j].AssignedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, id int64) (*inventory.ServerGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.groups[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
	}
	return s.aggregated(g), nil
}

func (s *MemoryStore) ListGroups(ctx context.Context, page, perPage int) ([]*inventory.ServerGroup, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*inventory.ServerGroup
	for _, g := range s.state.groups {
		all = append(all, s.aggregated(g))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	return paginate(all, page, perPage), total, nil
}

func (s *MemoryStore) aggregated(g *inventory.ServerGroup) *inventory.ServerGroup {
	c := copyGroup(g)
	var members []*inventory.Server
	for _, srv := range s.state.servers {
		if srv.GroupID != nil && *srv.GroupID == g.ID {
			members = append(members, srv)
		}
	}
	c.Aggregate(members)
	return c
}

func paginate[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
