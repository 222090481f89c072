package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/toozej/fuzic/internal/types"
)

// Recorder receives aggregation outcomes. The server backs it with prometheus.
type Recorder interface {
	CredentialsRefreshed(ok bool)
	OperationCompleted(op string, tracksAdded int)
	OperationFailed(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) CredentialsRefreshed(bool)      {}
func (nopRecorder) OperationCompleted(string, int) {}
func (nopRecorder) OperationFailed(string, error)  {}

// Retrier runs provider calls, refreshing credentials once when a call reports
// expired authentication.
type Retrier struct {
	Client   types.ProviderClient
	Logger   *logrus.Logger
	Recorder Recorder
}

// Do runs call. If it fails with types.ErrAuthExpired, credentials are refreshed
// exactly once and call is retried exactly once. A failed refresh or a second
// auth failure is returned as types.ErrAuthExpired; every other error is returned
// unchanged and never retried.
func Do[T any](ctx context.Context, r Retrier, op string, call func() (T, error)) (T, error) {
	var zero T

	value, err := call()
	if err == nil || !errors.Is(err, types.ErrAuthExpired) {
		return value, err
	}

	recorder := r.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	r.Logger.WithFields(logrus.Fields{
		"component": "aggregator",
		"operation": op,
	}).Info("Access token rejected, refreshing credentials")

	if refreshErr := r.Client.RefreshCredentials(ctx); refreshErr != nil {
		recorder.CredentialsRefreshed(false)
		if !errors.Is(refreshErr, types.ErrAuthExpired) {
			refreshErr = fmt.Errorf("%w: %v", types.ErrAuthExpired, refreshErr)
		}
		return zero, fmt.Errorf("%s: %w", op, refreshErr)
	}
	recorder.CredentialsRefreshed(true)

	value, err = call()
	if err != nil {
		return zero, fmt.Errorf("%s after credential refresh: %w", op, err)
	}
	return value, nil
}

// Exec is Do for calls that return only an error.
func Exec(ctx context.Context, r Retrier, op string, call func() error) error {
	_, err := Do(ctx, r, op, func() (struct{}, error) {
		return struct{}{}, call()
	})
	return err
}
