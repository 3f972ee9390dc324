package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/comtower/sms-relay/internal/model"
)

func TestIngest_CountsNewRowsOnly(t *testing.T) {
	messages := new(mockMessageRepo)
	messages.On("Insert", mock.Anything, mock.MatchedBy(func(p model.CreateSmsMessageParams) bool {
		return p.ExternalID == "101"
	})).Return(true, nil)
	messages.On("Insert", mock.Anything, mock.MatchedBy(func(p model.CreateSmsMessageParams) bool {
		return p.ExternalID == "102"
	})).Return(false, nil)

	svc := NewIngestService(messages)
	inserted, err := svc.Ingest(context.Background(), []ScrapedMessage{
		{ExternalID: "101", ComPort: "COM3", Content: "code 1111", OriginalTimestamp: testNow},
		{ExternalID: "102", ComPort: "COM3", Content: "code 2222", OriginalTimestamp: testNow},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestIngest_SkipsIncompleteRows(t *testing.T) {
	messages := new(mockMessageRepo)

	svc := NewIngestService(messages)
	inserted, err := svc.Ingest(context.Background(), []ScrapedMessage{
		{ExternalID: "", ComPort: "COM3", Content: "no id"},
		{ExternalID: "103", ComPort: "", Content: "no port"},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	messages.AssertNotCalled(t, "Insert")
}

func TestIngest_BadRowDoesNotBlockRest(t *testing.T) {
	messages := new(mockMessageRepo)
	messages.On("Insert", mock.Anything, mock.MatchedBy(func(p model.CreateSmsMessageParams) bool {
		return p.ExternalID == "201"
	})).Return(false, errors.New("boom"))
	messages.On("Insert", mock.Anything, mock.MatchedBy(func(p model.CreateSmsMessageParams) bool {
		return p.ExternalID == "202"
	})).Return(true, nil)

	svc := NewIngestService(messages)
	inserted, err := svc.Ingest(context.Background(), []ScrapedMessage{
		{ExternalID: "201", ComPort: "COM3", Content: "a", OriginalTimestamp: testNow},
		{ExternalID: "202", ComPort: "COM3", Content: "b", OriginalTimestamp: testNow},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestIngest_OptionalNumbers(t *testing.T) {
	messages := new(mockMessageRepo)
	messages.On("Insert", mock.Anything, mock.MatchedBy(func(p model.CreateSmsMessageParams) bool {
		return p.SenderNumber != nil && *p.SenderNumber == "10690001" && p.ReceiverNumber == nil
	})).Return(true, nil)

	svc := NewIngestService(messages)
	inserted, err := svc.Ingest(context.Background(), []ScrapedMessage{
		{ExternalID: "301", ComPort: "COM3", SenderNumber: "10690001", Content: "c", OriginalTimestamp: time.Now()},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}
