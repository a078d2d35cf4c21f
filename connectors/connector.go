// Package connectors fetches planning predictions from remote forecasting
// services.
package connectors

import (
	"context"

	"github.com/kilianp07/rakeplan/auth"
	"github.com/kilianp07/rakeplan/core/prediction"
)

// ErrIncompatibleOption is the format of the error returned when an option
// does not apply to a client.
const ErrIncompatibleOption = "option %s is not compatible with the %s connector"

// Client retrieves predictions. authClient may be nil for unauthenticated
// services.
type Client interface {
	Fetch(ctx context.Context, authClient *auth.ClientCred, opts ...Option) (prediction.MLPredictions, error)
}

// Option configures a single Fetch call.
type Option func(Client) error

// Provider adapts a Client to prediction.Provider.
type Provider struct {
	Client Client
	Auth   *auth.ClientCred
	// Options builds the per request options.
	Options func(prediction.Request) []Option
}

// Predict fetches the predictions for req.
func (p Provider) Predict(ctx context.Context, req prediction.Request) (prediction.MLPredictions, error) {
	var opts []Option
	if p.Options != nil {
		opts = p.Options(req)
	}
	return p.Client.Fetch(ctx, p.Auth, opts...)
}
