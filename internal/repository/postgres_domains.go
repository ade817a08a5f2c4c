package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

const domainColumns = `id, name, status, description, tags, created_by,
	created_at, updated_at, locked_by, locked_at`

func scanDomain(row pgx.Row) (*inventory.Domain, error) {
	var d inventory.Domain
	err := row.Scan(
		&d.ID, &d.Name, &d.Status, &d.Description, &d.Tags,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &d.LockedBy, &d.LockedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *pgTx) CreateDomain(ctx context.Context, d *inventory.Domain) error {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	row := t.tx.QueryRow(ctx, `
		INSERT INTO domains (name, status, description, tags, created_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		d.Name, d.Status, d.Description, tags, d.CreatedBy,
	)
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(apperrors.CodeNameTaken, "domain name already exists")
		}
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

func (t *pgTx) GetDomainForUpdate(ctx context.Context, id int64) (*inventory.Domain, error) {
	d, err := scanDomain(t.tx.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
		}
		return nil, fmt.Errorf("select domain for update: %w", err)
	}
	return d, nil
}

func (t *pgTx) GetDomainByName(ctx context.Context, name string) (*inventory.Domain, error) {
	d, err := scanDomain(t.tx.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE name = $1 LIMIT 1`,
		inventory.NormalizeDomainName(name)))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
		}
		return nil, fmt.Errorf("select domain by name: %w", err)
	}
	return d, nil
}

func (t *pgTx) UpdateDomain(ctx context.Context, d *inventory.Domain) error {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE domains SET
			name = $2, status = $3, description = $4, tags = $5,
			locked_by = $6, locked_at = $7, updated_at = now()
		WHERE id = $1`,
		d.ID, d.Name, d.Status, d.Description, tags, d.LockedBy, d.LockedAt,
	)
	if err != nil {
		return fmt.Errorf("update domain %d: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
	}
	return nil
}

func (t *pgTx) DeleteDomain(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete domain %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
	}
	return nil
}

func (s *PostgresStore) GetDomain(ctx context.Context, id int64) (*inventory.Domain, error) {
	d, err := scanDomain(s.pool.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE id = $1`, id))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeDomainNotFound, "domain not found")
		}
		return nil, fmt.Errorf("select domain: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListDomains(ctx context.Context, f DomainFilter) ([]*inventory.Domain, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Search != "" {
		add("(name ILIKE $%d OR description ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if f.Tag != "" {
		add("tags ? $%d", f.Tag)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM domains`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count domains: %w", err)
	}

	query := `SELECT ` + domainColumns + ` FROM domains` + where + ` ORDER BY id`
	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PerPage, (page-1)*f.PerPage)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []*inventory.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}
