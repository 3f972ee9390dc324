package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/comtower/sms-relay/internal/database"
	"github.com/comtower/sms-relay/internal/model"
)

// stubTxRunner runs the transactional function directly, without a database.
// Repositories receive a nil tx, which the mocks below ignore.
type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type mockMappingRepo struct {
	mock.Mock
}

func (m *mockMappingRepo) Upsert(ctx context.Context, q database.DBTX, comPort, phoneNumber string) error {
	args := m.Called(ctx, q, comPort, phoneNumber)
	return args.Error(0)
}

func (m *mockMappingRepo) FindByID(ctx context.Context, id int64) (*model.ComPhoneMapping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ComPhoneMapping), args.Error(1)
}

func (m *mockMappingRepo) List(ctx context.Context, limit, offset int) ([]model.ComPhoneMapping, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ComPhoneMapping), args.Error(1)
}

func (m *mockMappingRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockMappingRepo) CountAvailable(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *mockMappingRepo) AllocateAvailable(ctx context.Context, q database.DBTX, now time.Time, limit int) ([]model.ComPhoneMapping, error) {
	args := m.Called(ctx, q, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ComPhoneMapping), args.Error(1)
}

func (m *mockMappingRepo) MarkAllocated(ctx context.Context, q database.DBTX, id int64, linkedAt, cooldownUntil time.Time) error {
	args := m.Called(ctx, q, id, linkedAt, cooldownUntil)
	return args.Error(0)
}

func (m *mockMappingRepo) ResetCooldown(ctx context.Context, q database.DBTX, ids []int64) (int64, error) {
	args := m.Called(ctx, q, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMappingRepo) DeleteAll(ctx context.Context, q database.DBTX) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

type mockLinkRepo struct {
	mock.Mock
}

func (m *mockLinkRepo) Create(ctx context.Context, q database.DBTX, params model.CreateAccessLinkParams) (*model.AccessLink, error) {
	args := m.Called(ctx, q, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessLink), args.Error(1)
}

func (m *mockLinkRepo) TokenExists(ctx context.Context, q database.DBTX, token string) (bool, error) {
	args := m.Called(ctx, q, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockLinkRepo) FindByTokenForUpdate(ctx context.Context, q database.DBTX, token string) (*model.AccessLinkWithMapping, error) {
	args := m.Called(ctx, q, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessLinkWithMapping), args.Error(1)
}

func (m *mockLinkRepo) UpdateStatusFrom(ctx context.Context, q database.DBTX, id int64, from, to model.LinkStatus) (bool, error) {
	args := m.Called(ctx, q, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockLinkRepo) DeleteByMappingIDs(ctx context.Context, q database.DBTX, ids []int64) (int64, error) {
	args := m.Called(ctx, q, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLinkRepo) CountByStatus(ctx context.Context, status model.LinkStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *mockLinkRepo) DeleteAll(ctx context.Context, q database.DBTX) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Insert(ctx context.Context, params model.CreateSmsMessageParams) (bool, error) {
	args := m.Called(ctx, params)
	return args.Bool(0), args.Error(1)
}

func (m *mockMessageRepo) FindUnconsumedByPort(ctx context.Context, q database.DBTX, comPort string, limit int) ([]model.SmsMessage, error) {
	args := m.Called(ctx, q, comPort, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SmsMessage), args.Error(1)
}

func (m *mockMessageRepo) MarkConsumed(ctx context.Context, q database.DBTX, ids []int64, linkID int64) error {
	args := m.Called(ctx, q, ids, linkID)
	return args.Error(0)
}

func (m *mockMessageRepo) DeleteByPort(ctx context.Context, q database.DBTX, comPort string) (int64, error) {
	args := m.Called(ctx, q, comPort)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageRepo) CountUnconsumed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) DeleteAll(ctx context.Context, q database.DBTX) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

type mockConfigRepo struct {
	mock.Mock
}

func (m *mockConfigRepo) Get(ctx context.Context, key string) (*model.SystemConfig, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SystemConfig), args.Error(1)
}

func (m *mockConfigRepo) GetAll(ctx context.Context) ([]model.SystemConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SystemConfig), args.Error(1)
}

func (m *mockConfigRepo) Upsert(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockConfigRepo) Increment(ctx context.Context, q database.DBTX, key string, delta int) error {
	args := m.Called(ctx, q, key, delta)
	return args.Error(0)
}

func configRow(key, value string) *model.SystemConfig {
	return &model.SystemConfig{ConfigKey: key, ConfigValue: value}
}
