package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"domainhub.io/hubd/internal/inventory"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

// assignmentSelect joins the display fields the UI and exports need.
const assignmentSelect = `
	SELECT a.id, a.domain_id, a.server_id, a.assigned_by, a.assigned_at,
	       d.name, s.name, s.ip_address
	FROM assignments a
	JOIN domains d ON d.id = a.domain_id
	JOIN servers s ON s.id = a.server_id`

func scanAssignment(row pgx.Row) (*inventory.Assignment, error) {
	var a inventory.Assignment
	err := row.Scan(
		&a.ID, &a.DomainID, &a.ServerID, &a.AssignedBy, &a.AssignedAt,
		&a.DomainName, &a.ServerName, &a.ServerIP,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *pgTx) InsertAssignment(ctx context.Context, a *inventory.Assignment) error {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO assignments (domain_id, server_id, assigned_by)
		VALUES ($1,$2,$3)
		RETURNING id, assigned_at`,
		a.DomainID, a.ServerID, a.AssignedBy,
	)
	if err := row.Scan(&a.ID, &a.AssignedAt); err != nil {
		if isUniqueViolation(err) {
			// uq_domain_assignment: at most one active assignment per domain.
			return apperrors.ErrDomainAlreadyAssigned(a.DomainID)
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (t *pgTx) GetAssignmentForUpdate(ctx context.Context, id int64) (*inventory.Assignment, error) {
	a, err := scanAssignment(t.tx.QueryRow(ctx,
		assignmentSelect+` WHERE a.id = $1 FOR UPDATE OF a`, id))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
		}
		return nil, fmt.Errorf("select assignment for update: %w", err)
	}
	return a, nil
}

func (t *pgTx) GetAssignmentByDomain(ctx context.Context, domainID int64) (*inventory.Assignment, error) {
	a, err := scanAssignment(t.tx.QueryRow(ctx,
		assignmentSelect+` WHERE a.domain_id = $1 FOR UPDATE OF a`, domainID))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
		}
		return nil, fmt.Errorf("select assignment by domain: %w", err)
	}
	return a, nil
}

func (t *pgTx) ListAssignmentsByServer(ctx context.Context, serverID int64) ([]*inventory.Assignment, error) {
	rows, err := t.tx.Query(ctx,
		assignmentSelect+` WHERE a.server_id = $1 ORDER BY a.id FOR UPDATE OF a`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list assignments by server: %w", err)
	}
	defer rows.Close()

	var out []*inventory.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) DeleteAssignment(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
	}
	return nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id int64) (*inventory.Assignment, error) {
	a, err := scanAssignment(s.pool.QueryRow(ctx, assignmentSelect+` WHERE a.id = $1`, id))
	if err != nil {
		if noRows(err) {
			return nil, apperrors.NotFound(apperrors.CodeAssignmentNotFound, "assignment not found")
		}
		return nil, fmt.Errorf("select assignment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, f AssignmentFilter) ([]*inventory.Assignment, error) {
	query := assignmentSelect
	var args []interface{}
	switch {
	case f.ServerID != nil:
		args = append(args, *f.ServerID)
		query += ` WHERE a.server_id = $1`
	case f.DomainID != nil:
		args = append(args, *f.DomainID)
		query += ` WHERE a.domain_id = $1`
	case f.GroupID != nil:
		args = append(args, *f.GroupID)
		query += ` WHERE s.group_id = $1`
	}
	query += ` ORDER BY a.assigned_at DESC, a.id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []*inventory.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
