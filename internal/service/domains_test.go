package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/repository"
)

func TestDomainCreate_NormalizesName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d, err := e.domains.Create(ctx, CreateDomainInput{Name: "  Example.COM "}, "alice")
	require.NoError(t, err)
	require.Equal(t, "example.com", d.Name)
	require.Equal(t, inventory.DomainFree, d.Status)
	require.NotNil(t, d.Tags)
}

func TestDomainCreate_CasingVariantsCollide(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.domains.Create(ctx, CreateDomainInput{Name: "example.com"}, "alice")
	require.NoError(t, err)

	_, err = e.domains.Create(ctx, CreateDomainInput{Name: "EXAMPLE.com"}, "bob")
	require.True(t, apperrors.IsCode(err, apperrors.CodeNameTaken))
}

func TestDomainDelete_BlockedWhileAssigned(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.seedServer(t, "web-1", "10.0.0.1", inventory.CapacityLow)
	d := e.seedDomain(t, "example.com")

	_, err := e.assignments.Assign(ctx, d.ID, srv.ID, "alice")
	require.NoError(t, err)

	err = e.domains.Delete(ctx, d.ID, "alice")
	require.True(t, apperrors.IsCode(err, apperrors.CodeReferentialConflict))

	require.NoError(t, e.assignments.UnassignDomain(ctx, d.ID, "alice"))
	require.NoError(t, e.domains.Delete(ctx, d.ID, "alice"))
}

func TestDomainBulkImport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedDomain(t, "existing.com")

	text := "New.com\nexisting.com\n\nnew.com\nother.org\n"
	res, err := e.domains.BulkImport(ctx, text, []string{"batch"}, "alice")
	require.NoError(t, err)

	require.Len(t, res.Created, 2)
	require.Equal(t, "new.com", res.Created[0].Name)
	require.Equal(t, []string{"batch"}, res.Created[0].Tags)
	require.Equal(t, "other.org", res.Created[1].Name)
	require.ElementsMatch(t, []string{"existing.com", "new.com"}, res.Skipped)
}

func TestDomainList_SearchAndTag(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.domains.Create(ctx, CreateDomainInput{Name: "shop.example.com", Tags: []string{"prod"}}, "alice")
	require.NoError(t, err)
	_, err = e.domains.Create(ctx, CreateDomainInput{Name: "blog.example.com", Tags: []string{"staging"}}, "alice")
	require.NoError(t, err)

	domains, total, err := e.domains.List(ctx, repository.DomainFilter{Search: "shop"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "shop.example.com", domains[0].Name)

	domains, total, err = e.domains.List(ctx, repository.DomainFilter{Tag: "staging"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "blog.example.com", domains[0].Name)
}

func TestDomainUpdate_Tags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.seedDomain(t, "example.com")

	tags := []string{"prod", "dns"}
	updated, err := e.domains.Update(ctx, d.ID, UpdateDomainInput{Tags: &tags}, "alice")
	require.NoError(t, err)
	require.Equal(t, tags, updated.Tags)
}
