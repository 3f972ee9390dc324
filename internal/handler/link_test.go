package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/comtower/sms-relay/internal/database"
	"github.com/comtower/sms-relay/internal/model"
	"github.com/comtower/sms-relay/internal/service"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
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

func newResolveTestServer(links *mockLinkRepo, messages *mockMessageRepo, configs *mockConfigRepo) *httptest.Server {
	configs.On("Get", mock.Anything, model.ConfigKeyValidityPeriod).
		Return(&model.SystemConfig{ConfigKey: model.ConfigKeyValidityPeriod, ConfigValue: "10"}, nil).Maybe()
	configs.On("Get", mock.Anything, model.ConfigKeyAnnouncement).
		Return(&model.SystemConfig{ConfigKey: model.ConfigKeyAnnouncement, ConfigValue: "notice"}, nil).Maybe()

	linkService := service.NewLinkService(
		stubTxRunner{}, new(mockMappingRepo), links, messages, configs,
		service.NewSettingsService(configs), service.NewTokenGenerator(time.UTC),
		"http://localhost:8080",
	)
	return httptest.NewServer(NewLinkHandler(linkService).Routes())
}

func TestLinkHandler_Resolve_UnknownToken(t *testing.T) {
	links := new(mockLinkRepo)
	messages := new(mockMessageRepo)
	configs := new(mockConfigRepo)
	links.On("FindByTokenForUpdate", mock.Anything, mock.Anything, "missing").Return(nil, nil)

	srv := newResolveTestServer(links, messages, configs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "LINK_INVALID", body["code"])
}

func TestLinkHandler_Resolve_Pending(t *testing.T) {
	links := new(mockLinkRepo)
	messages := new(mockMessageRepo)
	configs := new(mockConfigRepo)

	link := &model.AccessLinkWithMapping{
		AccessLink: model.AccessLink{
			ID:        7,
			Token:     "tok",
			Status:    model.LinkStatusActive,
			ExpiresAt: time.Now().Add(time.Hour),
		},
		ComPort:     "COM3",
		PhoneNumber: "15550001",
	}
	links.On("FindByTokenForUpdate", mock.Anything, mock.Anything, "tok").Return(link, nil)
	messages.On("FindUnconsumedByPort", mock.Anything, mock.Anything, "COM3", 2).
		Return([]model.SmsMessage{}, nil)

	srv := newResolveTestServer(links, messages, configs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tok")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "Waiting for new messages...", body["message"])
	assert.Equal(t, "15550001", body["phoneNumber"])
	assert.Equal(t, "notice", body["announcement"])
}

func TestLinkHandler_Resolve_Completed(t *testing.T) {
	links := new(mockLinkRepo)
	messages := new(mockMessageRepo)
	configs := new(mockConfigRepo)

	now := time.Now()
	link := &model.AccessLinkWithMapping{
		AccessLink: model.AccessLink{
			ID:        7,
			Token:     "tok",
			Status:    model.LinkStatusActive,
			ExpiresAt: now.Add(time.Hour),
		},
		ComPort:     "COM3",
		PhoneNumber: "15550001",
	}
	msgs := []model.SmsMessage{
		{ID: 2, Content: "code 5678", OriginalTimestamp: now.Add(-time.Minute)},
		{ID: 1, Content: "code 1234", OriginalTimestamp: now.Add(-2 * time.Minute)},
	}
	links.On("FindByTokenForUpdate", mock.Anything, mock.Anything, "tok").Return(link, nil)
	messages.On("FindUnconsumedByPort", mock.Anything, mock.Anything, "COM3", 2).Return(msgs, nil)
	messages.On("MarkConsumed", mock.Anything, mock.Anything, []int64{2, 1}, int64(7)).Return(nil)
	links.On("UpdateStatusFrom", mock.Anything, mock.Anything, int64(7), model.LinkStatusActive, model.LinkStatusCompleted).
		Return(true, nil)

	srv := newResolveTestServer(links, messages, configs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tok")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status   string `json:"status"`
		Messages []struct {
			Content           string `json:"content"`
			OriginalTimestamp string `json:"originalTimestamp"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "completed", body.Status)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "code 5678", body.Messages[0].Content)
	assert.NotEmpty(t, body.Messages[0].OriginalTimestamp)
}

func TestLinkHandler_Resolve_ShortRoute(t *testing.T) {
	links := new(mockLinkRepo)
	messages := new(mockMessageRepo)
	configs := new(mockConfigRepo)
	links.On("FindByTokenForUpdate", mock.Anything, mock.Anything, "abc1200M3").Return(nil, nil)

	srv := newResolveTestServer(links, messages, configs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/short/abc1200M3")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	links.AssertCalled(t, "FindByTokenForUpdate", mock.Anything, mock.Anything, "abc1200M3")
}
