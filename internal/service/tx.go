package service

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/comtower/sms-relay/internal/database"
	apperrors "github.com/comtower/sms-relay/internal/errors"
)

// TxRunner abstracts database.DB transactions so services can be exercised
// with a stub in tests.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

var _ TxRunner = (*database.DB)(nil)

const txMaxRetries = 3

// retryTx runs a transactional operation, retrying with exponential backoff
// when the store reports a serialization failure or deadlock. Any other error
// aborts immediately. Exhausted retries surface as a transaction conflict.
func retryTx(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if database.IsSerializationFailure(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), txMaxRetries), ctx)
	err := backoff.Retry(wrapped, bo)
	if err != nil && database.IsSerializationFailure(err) {
		return apperrors.TransactionConflict(err)
	}
	return err
}
