package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/mapsdrop/pkg/cli"
)

func TestRun_InvalidSentryDSN(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "roads.zip")
	gt.NoError(t, os.WriteFile(archive, []byte("not a zip"), 0600))

	err := cli.Run(context.Background(), []string{"mapsdrop", "--sentry-dsn", "not-a-dsn", "validate", archive})
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("sentry")
}

func TestRun_InvalidLogLevel(t *testing.T) {
	err := cli.Run(context.Background(), []string{"mapsdrop", "--log-level", "loud", "validate", "roads.zip"})
	gt.Error(t, err)
}
