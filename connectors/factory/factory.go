package factory

import (
	"fmt"

	"github.com/kilianp07/rakeplan/auth"
	"github.com/kilianp07/rakeplan/connectors"
	"github.com/kilianp07/rakeplan/connectors/clients/forecast"
)

const (
	IDForecast = "forecast"
)

var (
	errUnknownClient = "unknown connector id: %s"
)

// NewProvider builds a prediction provider for the connector registered under
// id. An empty id selects the forecast connector.
func NewProvider(id, baseURL string, authConf auth.Conf) (connectors.Provider, error) {
	var p connectors.Provider
	switch id {
	case IDForecast, "":
		p = connectors.Provider{Client: forecast.New(baseURL), Options: forecast.RequestOptions}
	default:
		return connectors.Provider{}, fmt.Errorf(errUnknownClient, id)
	}
	if authConf.Enabled() {
		p.Auth = auth.NewClientCred(authConf)
	}
	return p, nil
}
