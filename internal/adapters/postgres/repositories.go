package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"attest/internal/domain"
)

// EntityRepository

func (db *DB) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	var e domain.Entity
	err := db.Pool.QueryRow(ctx, `
        SELECT id, name, kind, parent_id FROM entities WHERE id = $1
    `, id).Scan(&e.ID, &e.Name, &e.Kind, &e.ParentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entity{}, domain.ErrNotFound
	}
	return e, err
}

func (db *DB) Children(ctx context.Context, parentID string) ([]domain.Entity, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, name, kind, parent_id FROM entities WHERE parent_id = $1 ORDER BY name
    `, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (db *DB) ListByKind(ctx context.Context, kind domain.EntityKind) ([]domain.Entity, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, name, kind, parent_id FROM entities WHERE kind = $1 ORDER BY name
    `, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func scanEntities(rows pgx.Rows) ([]domain.Entity, error) {
	var out []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &e.ParentID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ItemRepository

func (db *DB) ListActiveByOwner(ctx context.Context, ownerEntityID string) ([]domain.ComplianceItem, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, owner_entity_id, category, completion_date, expiration_date, superseded_by
        FROM compliance_items
        WHERE owner_entity_id = $1 AND superseded_by IS NULL
        ORDER BY category, created_at
    `, ownerEntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ComplianceItem
	for rows.Next() {
		var item domain.ComplianceItem
		if err := rows.Scan(&item.ID, &item.OwnerEntityID, &item.Category,
			&item.CompletionDate, &item.ExpirationDate, &item.SupersededBy); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
