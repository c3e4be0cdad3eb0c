package config

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/infra/tokenstore"
	"github.com/urfave/cli/v3"
)

// TokenStore selects where OAuth tokens are kept
type TokenStore struct {
	Backend    string
	ProjectID  string
	DatabaseID string
	Collection string
}

// Flags returns CLI flags for the token store
func (c *TokenStore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "token-store",
			Usage:       "Token store backend (memory, firestore)",
			Value:       "memory",
			Destination: &c.Backend,
			Sources:     cli.EnvVars("MAPSDROP_TOKEN_STORE"),
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project ID of the Firestore database",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("MAPSDROP_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Value:       firestore.DefaultDatabaseID,
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars("MAPSDROP_FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Firestore collection for session tokens",
			Value:       tokenstore.DefaultCollection,
			Destination: &c.Collection,
			Sources:     cli.EnvVars("MAPSDROP_FIRESTORE_COLLECTION"),
		},
	}
}

// New creates the token store. The returned function releases its resources.
func (c *TokenStore) New(ctx context.Context) (interfaces.TokenStore, func(), error) {
	switch c.Backend {
	case "", "memory":
		return tokenstore.NewMemory(), func() {}, nil

	case "firestore":
		if c.ProjectID == "" {
			return nil, nil, goerr.New("firestore-project-id is required for the firestore token store")
		}
		client, err := firestore.NewClientWithDatabase(ctx, c.ProjectID, c.DatabaseID)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create firestore client",
				goerr.V("project_id", c.ProjectID),
				goerr.V("database_id", c.DatabaseID),
			)
		}
		return tokenstore.NewFirestore(client, c.Collection), func() { _ = client.Close() }, nil

	default:
		return nil, nil, goerr.New("unknown token store backend", goerr.V("backend", c.Backend))
	}
}
