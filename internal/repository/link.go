package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/comtower/sms-relay/internal/database"
	"github.com/comtower/sms-relay/internal/model"
)

// LinkRepository handles access link data operations.
type LinkRepository interface {
	Create(ctx context.Context, q database.DBTX, params model.CreateAccessLinkParams) (*model.AccessLink, error)
	TokenExists(ctx context.Context, q database.DBTX, token string) (bool, error)
	FindByTokenForUpdate(ctx context.Context, q database.DBTX, token string) (*model.AccessLinkWithMapping, error)
	UpdateStatusFrom(ctx context.Context, q database.DBTX, id int64, from, to model.LinkStatus) (bool, error)
	DeleteByMappingIDs(ctx context.Context, q database.DBTX, ids []int64) (int64, error)
	CountByStatus(ctx context.Context, status model.LinkStatus) (int, error)
	DeleteAll(ctx context.Context, q database.DBTX) error
}

type linkRepo struct {
	db *sqlx.DB
}

// NewLinkRepository creates a new access link repository
func NewLinkRepository(db *sqlx.DB) LinkRepository {
	return &linkRepo{db: db}
}

func (r *linkRepo) Create(ctx context.Context, q database.DBTX, params model.CreateAccessLinkParams) (*model.AccessLink, error) {
	var link model.AccessLink
	err := q.GetContext(ctx, &link, `
		INSERT INTO access_links (token, mapping_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.Token, params.MappingID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepo) TokenExists(ctx context.Context, q database.DBTX, token string) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM access_links WHERE token = $1)
	`, token)
	return exists, err
}

// FindByTokenForUpdate looks up a link with its mapping and locks the link
// row, serializing concurrent resolves of the same token.
func (r *linkRepo) FindByTokenForUpdate(ctx context.Context, q database.DBTX, token string) (*model.AccessLinkWithMapping, error) {
	var link model.AccessLinkWithMapping
	err := q.GetContext(ctx, &link, `
		SELECT al.id, al.token, al.mapping_id, al.status, al.expires_at, al.created_at,
		       cpm.com_port, cpm.phone_number
		FROM access_links al
		JOIN com_phone_mappings cpm ON cpm.id = al.mapping_id
		WHERE al.token = $1
		FOR UPDATE OF al
	`, token)
	return HandleNotFound(&link, err)
}

// UpdateStatusFrom transitions a link from one status to another. The guard
// on the current status keeps terminal states terminal; the bool reports
// whether the transition actually happened.
func (r *linkRepo) UpdateStatusFrom(ctx context.Context, q database.DBTX, id int64, from, to model.LinkStatus) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE access_links SET status = $3
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteByMappingIDs removes all links bound to the given mappings. Part of
// the cooldown reset transaction.
func (r *linkRepo) DeleteByMappingIDs(ctx context.Context, q database.DBTX, ids []int64) (int64, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM access_links WHERE mapping_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *linkRepo) CountByStatus(ctx context.Context, status model.LinkStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM access_links WHERE status = $1
	`, status)
	return count, err
}

func (r *linkRepo) DeleteAll(ctx context.Context, q database.DBTX) error {
	_, err := q.ExecContext(ctx, `DELETE FROM access_links`)
	return err
}
