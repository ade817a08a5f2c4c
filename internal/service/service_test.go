package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/inventory"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/repository"
)

func init() {
	_ = logger.Init("error", "json")
}

// env bundles the services under test over one in-memory store.
type env struct {
	store       *repository.MemoryStore
	broker      *events.Broker
	servers     *ServerService
	domains     *DomainService
	assignments *AssignmentService
	planner     *PlannerService
	groups      *GroupService
	locks       *LockRegistry
	stats       *StatsService
	exports     *ExportService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := repository.NewMemoryStore()
	broker := events.NewBroker()
	ledger := NewAssignmentService(store, broker)
	return &env{
		store:       store,
		broker:      broker,
		servers:     NewServerService(store, broker),
		domains:     NewDomainService(store, broker),
		assignments: ledger,
		planner:     NewPlannerService(store, ledger),
		groups:      NewGroupService(store, broker),
		locks:       NewLockRegistry(store, broker),
		stats:       NewStatsService(store),
		exports:     NewExportService(store),
	}
}

// seedServer creates a server directly in the store.
func (e *env) seedServer(t *testing.T, name, ip string, mode inventory.CapacityMode) *inventory.Server {
	t.Helper()
	srv := &inventory.Server{
		Name:         name,
		IPAddress:    ip,
		Status:       inventory.ServerFree,
		CapacityMode: mode,
		MaxDomains:   inventory.SlotsFor(mode),
		CreatedBy:    "seed",
	}
	err := e.store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateServer(context.Background(), srv)
	})
	require.NoError(t, err)
	return srv
}

func (e *env) seedDomain(t *testing.T, name string) *inventory.Domain {
	t.Helper()
	d := &inventory.Domain{
		Name:      inventory.NormalizeDomainName(name),
		Status:    inventory.DomainFree,
		Tags:      []string{},
		CreatedBy: "seed",
	}
	err := e.store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateDomain(context.Background(), d)
	})
	require.NoError(t, err)
	return d
}

func (e *env) seedGroup(t *testing.T, name string) *inventory.ServerGroup {
	t.Helper()
	g := &inventory.ServerGroup{Name: name, CreatedBy: "seed"}
	err := e.store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateGroup(context.Background(), g)
	})
	require.NoError(t, err)
	return g
}

// collect subscribes to a channel and records events synchronously.
func (e *env) collect(ch events.Channel) *[]events.Event {
	var got []events.Event
	e.broker.Subscribe(ch, func(ev events.Event) {
		got = append(got, ev)
	})
	return &got
}
