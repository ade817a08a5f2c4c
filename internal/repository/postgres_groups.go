package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

// groupSelect recomputes the derived aggregates from live server state on
// every read so they can never drift from the authoritative counters.
const groupSelect = `
	SELECT g.id, g.name, g.description, g.color, g.created_by, g.created_at, g.updated_at,
	       count(s.id), COALESCE(sum(s.max_domains), 0), COALESCE(sum(s.current_domains), 0)
	FROM server_groups g
	LEFT JOIN servers s ON s.group_id = g.id`

const groupBy = ` GROUP BY g.id`

func scanGroup(row pgx.Row) (*inventory.ServerGroup, error) {
	var g inventory.ServerGroup
	err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.Color, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt,
		&g.ServerCount, &g.TotalCapacity, &g.TotalDomains,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (t *pgTx) CreateGroup(ctx context.Context, g *inventory.ServerGroup) error {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO server_groups (name, description, color, created_by)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at, updated_at`,
		g.Name, g.Description, g.Color, g.CreatedBy,
	)
	if err := row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(apperrors.CodeNameTaken, "group name already exists")
		}
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (t *pgTx) GetGroupForUpdate(ctx context.Context, id int64) (*inventory.ServerGroup, error) {
	// Aggregates are read separately: FOR UPDATE does not mix with GROUP BY.
	var g inventory.ServerGroup
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, description, color, created_by, created_at, updated_at
		FROM server_groups WHERE id = $1 FOR UPDATE`, id).
		Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
		}
		return nil, fmt.Errorf("select group for update: %w", err)
	}
	return &g, nil
}

func (t *pgTx) UpdateGroup(ctx context.Context, g *inventory.ServerGroup) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE server_groups SET name = $2, description = $3, color = $4, updated_at = now()
		WHERE id = $1`,
		g.ID, g.Name, g.Description, g.Color,
	)
	if err != nil {
		return fmt.Errorf("update group %d: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
	}
	return nil
}

func (t *pgTx) DeleteGroup(ctx context.Context, id int64) error {
	// ON DELETE SET NULL detaches members; the group never owns servers.
	tag, err := t.tx.Exec(ctx, `DELETE FROM server_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
	}
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id int64) (*inventory.ServerGroup, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx, groupSelect+` WHERE g.id = $1`+groupBy, id))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeGroupNotFound, "server group not found")
		}
		return nil, fmt.Errorf("select group: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context, page, perPage int) ([]*inventory.ServerGroup, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM server_groups`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}

	query := groupSelect + groupBy + ` ORDER BY g.name`
	if perPage > 0 {
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", perPage, (page-1)*perPage)
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []*inventory.ServerGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, total, rows.Err()
}
