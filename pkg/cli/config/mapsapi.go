package config

import (
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/infra/mapsapi"
	"github.com/m-mizutani/mapsdrop/pkg/utils/metrics"
	"github.com/urfave/cli/v3"
)

// MapsAPI holds the mapping API configuration
type MapsAPI struct {
	BaseURL string
}

// Flags returns CLI flags for the mapping API
func (c *MapsAPI) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "maps-api-url",
			Usage:       "Base URL of the mapping API",
			Value:       mapsapi.DefaultBaseURL,
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("MAPSDROP_MAPS_API_URL"),
		},
	}
}

// NewFactory returns a factory of per-user API clients. userIP replaces
// mapsapi.DefaultUserIP when set.
func (c *MapsAPI) NewFactory(m *metrics.Metrics, userIP string) interfaces.MapsAPIFactory {
	return mapsapi.NewFactory(
		mapsapi.WithBaseURL(c.BaseURL),
		mapsapi.WithDefaultUserIP(userIP),
		mapsapi.WithMetrics(m),
	)
}
