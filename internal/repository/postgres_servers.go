package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

const serverColumns = `id, name, ip_address, password, status, capacity_mode,
	max_domains, current_domains, is_central_config, individual_config,
	central_config, description, group_id, created_by, created_at, updated_at,
	locked_by, locked_at`

func scanServer(row pgx.Row) (*inventory.Server, error) {
	var s inventory.Server
	err := row.Scan(
		&s.ID, &s.Name, &s.IPAddress, &s.Password, &s.Status, &s.CapacityMode,
		&s.MaxDomains, &s.CurrentDomains, &s.IsCentralConfig, &s.IndividualConfig,
		&s.CentralConfig, &s.Description, &s.GroupID, &s.CreatedBy, &s.CreatedAt,
		&s.UpdatedAt, &s.LockedBy, &s.LockedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *pgTx) CreateServer(ctx context.Context, s *inventory.Server) error {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO servers (name, ip_address, password, status, capacity_mode,
			max_domains, current_domains, is_central_config, individual_config,
			central_config, description, group_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at, updated_at`,
		s.Name, s.IPAddress, s.Password, s.Status, s.CapacityMode,
		s.MaxDomains, s.CurrentDomains, s.IsCentralConfig, s.IndividualConfig,
		s.CentralConfig, s.Description, s.GroupID, s.CreatedBy,
	)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(apperrors.CodeNameTaken, "server name already exists")
		}
		return fmt.Errorf("insert server: %w", err)
	}
	return nil
}

func (t *pgTx) GetServerForUpdate(ctx context.Context, id int64) (*inventory.Server, error) {
	s, err := scanServer(t.tx.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
		}
		return nil, fmt.Errorf("select server for update: %w", err)
	}
	return s, nil
}

func (t *pgTx) GetServerByIP(ctx context.Context, ip string) (*inventory.Server, error) {
	s, err := scanServer(t.tx.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE ip_address = $1 LIMIT 1`, ip))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
		}
		return nil, fmt.Errorf("select server by ip: %w", err)
	}
	return s, nil
}

func (t *pgTx) UpdateServer(ctx context.Context, s *inventory.Server) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE servers SET
			name = $2, ip_address = $3, password = $4, status = $5,
			capacity_mode = $6, max_domains = $7, current_domains = $8,
			is_central_config = $9, individual_config = $10, central_config = $11,
			description = $12, group_id = $13, locked_by = $14, locked_at = $15,
			updated_at = now()
		WHERE id = $1`,
		s.ID, s.Name, s.IPAddress, s.Password, s.Status,
		s.CapacityMode, s.MaxDomains, s.CurrentDomains,
		s.IsCentralConfig, s.IndividualConfig, s.CentralConfig,
		s.Description, s.GroupID, s.LockedBy, s.LockedAt,
	)
	if err != nil {
		return fmt.Errorf("update server %d: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
	}
	return nil
}

func (t *pgTx) DeleteServer(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete server %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
	}
	return nil
}

func (s *PostgresStore) GetServer(ctx context.Context, id int64) (*inventory.Server, error) {
	srv, err := scanServer(s.pool.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE id = $1`, id))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeServerNotFound, "server not found")
		}
		return nil, fmt.Errorf("select server: %w", err)
	}
	return srv, nil
}

func (s *PostgresStore) ListServers(ctx context.Context, f ServerFilter) ([]*inventory.Server, int, error) {
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
	if f.GroupID != nil {
		add("group_id = $%d", *f.GroupID)
	}
	if f.Ungrouped {
		conds = append(conds, "group_id IS NULL")
	}
	if f.AvailableOnly {
		conds = append(conds, "current_domains < max_domains")
	}
	if f.Unlocked {
		conds = append(conds, "locked_by = ''")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM servers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count servers: %w", err)
	}

	query := `SELECT ` + serverColumns + ` FROM servers` + where + ` ORDER BY id`
	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PerPage, (page-1)*f.PerPage)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []*inventory.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan server: %w", err)
		}
		out = append(out, srv)
	}
	return out, total, rows.Err()
}
