package forecast

import (
	"fmt"
	"time"

	"github.com/kilianp07/rakeplan/connectors"
	"github.com/kilianp07/rakeplan/core/prediction"
)

func WithTime(at time.Time) connectors.Option {
	return func(c connectors.Client) error {
		if f, ok := c.(*Client); ok {
			f.at = at
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithTime", name)
	}
}

func WithLoadingPoints(ids []string) connectors.Option {
	return func(c connectors.Client) error {
		if f, ok := c.(*Client); ok {
			f.loadingPoints = ids
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithLoadingPoints", name)
	}
}

func WithRoutes(ids []string) connectors.Option {
	return func(c connectors.Client) error {
		if f, ok := c.(*Client); ok {
			f.routes = ids
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithRoutes", name)
	}
}

// RequestOptions maps a prediction request onto the client options.
func RequestOptions(req prediction.Request) []connectors.Option {
	return []connectors.Option{WithTime(req.At), WithLoadingPoints(req.LoadingPoints), WithRoutes(req.Routes)}
}
