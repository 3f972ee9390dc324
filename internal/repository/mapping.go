package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/comtower/sms-relay/internal/database"
	"github.com/comtower/sms-relay/internal/model"
)

// MappingRepository handles COM-port-to-phone-number pool data operations.
// Operations that must run inside an allocation transaction take a
// database.DBTX so the caller controls the transaction boundary.
type MappingRepository interface {
	Upsert(ctx context.Context, q database.DBTX, comPort, phoneNumber string) error
	FindByID(ctx context.Context, id int64) (*model.ComPhoneMapping, error)
	List(ctx context.Context, limit, offset int) ([]model.ComPhoneMapping, error)
	Count(ctx context.Context) (int, error)
	CountAvailable(ctx context.Context, now time.Time) (int, error)
	AllocateAvailable(ctx context.Context, q database.DBTX, now time.Time, limit int) ([]model.ComPhoneMapping, error)
	MarkAllocated(ctx context.Context, q database.DBTX, id int64, linkedAt, cooldownUntil time.Time) error
	ResetCooldown(ctx context.Context, q database.DBTX, ids []int64) (int64, error)
	DeleteAll(ctx context.Context, q database.DBTX) error
}

type mappingRepo struct {
	db *sqlx.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *sqlx.DB) MappingRepository {
	return &mappingRepo{db: db}
}

// Upsert inserts a mapping or, when the COM port already exists, replaces
// its phone number. Used by bulk import.
func (r *mappingRepo) Upsert(ctx context.Context, q database.DBTX, comPort, phoneNumber string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO com_phone_mappings (com_port, phone_number)
		VALUES ($1, $2)
		ON CONFLICT (com_port) DO UPDATE SET phone_number = EXCLUDED.phone_number
	`, comPort, phoneNumber)
	return err
}

func (r *mappingRepo) FindByID(ctx context.Context, id int64) (*model.ComPhoneMapping, error) {
	var m model.ComPhoneMapping
	err := r.db.GetContext(ctx, &m, `SELECT * FROM com_phone_mappings WHERE id = $1`, id)
	return HandleNotFound(&m, err)
}

func (r *mappingRepo) List(ctx context.Context, limit, offset int) ([]model.ComPhoneMapping, error) {
	var mappings []model.ComPhoneMapping
	err := r.db.SelectContext(ctx, &mappings, `
		SELECT * FROM com_phone_mappings
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return mappings, err
}

func (r *mappingRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM com_phone_mappings`)
	return count, err
}

func (r *mappingRepo) CountAvailable(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM com_phone_mappings
		WHERE cooldown_until IS NULL OR cooldown_until < $1
	`, now)
	return count, err
}

// AllocateAvailable selects up to limit allocatable mappings in ascending id
// order and locks their rows for the duration of the transaction. The lock is
// what prevents two concurrent issuance requests from claiming the same
// number: a competing transaction blocks on the row and re-evaluates the
// cooldown predicate once the first one commits.
func (r *mappingRepo) AllocateAvailable(ctx context.Context, q database.DBTX, now time.Time, limit int) ([]model.ComPhoneMapping, error) {
	var mappings []model.ComPhoneMapping
	err := q.SelectContext(ctx, &mappings, `
		SELECT * FROM com_phone_mappings
		WHERE cooldown_until IS NULL OR cooldown_until < $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE
	`, now, limit)
	return mappings, err
}

func (r *mappingRepo) MarkAllocated(ctx context.Context, q database.DBTX, id int64, linkedAt, cooldownUntil time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE com_phone_mappings
		SET last_linked_at = $2, cooldown_until = $3
		WHERE id = $1
	`, id, linkedAt, cooldownUntil)
	return err
}

// ResetCooldown clears the cooldown and last-linked timestamps for the given
// mappings, returning the number of rows touched.
func (r *mappingRepo) ResetCooldown(ctx context.Context, q database.DBTX, ids []int64) (int64, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE com_phone_mappings
		SET last_linked_at = NULL, cooldown_until = NULL
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *mappingRepo) DeleteAll(ctx context.Context, q database.DBTX) error {
	_, err := q.ExecContext(ctx, `DELETE FROM com_phone_mappings`)
	return err
}
