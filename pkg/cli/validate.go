package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check a zip archive without uploading it",
		ArgsUsage: "FILE.zip",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("exactly one archive path is required")
			}
			path := c.Args().First()

			data, err := os.ReadFile(path)
			if err != nil {
				return goerr.Wrap(err, "failed to read archive", goerr.V("path", path))
			}

			w := c.Root().Writer
			if w == nil {
				w = os.Stdout
			}
			return validateArchive(w, path, data)
		},
	}
}

func validateArchive(w io.Writer, path string, data []byte) error {
	var (
		okMark   = color.New(color.FgGreen).SprintFunc()
		skipMark = color.New(color.FgYellow).SprintFunc()
		bad      = color.New(color.FgRed, color.Bold).SprintFunc()
		good     = color.New(color.FgGreen, color.Bold).SprintFunc()
	)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		fmt.Fprintf(w, "%s %s is not a zip archive\n", bad("NG"), path)
		return goerr.Wrap(usecase.ErrInvalidArchive, "not a zip archive", goerr.V("path", path))
	}

	listing := model.NewShapefileArchive(zr, int64(len(data)))
	for _, name := range listing.AllNames() {
		if model.IsShapefileComponent(name) {
			fmt.Fprintf(w, "  %s %s (%d bytes)\n", okMark("+"), name, listing.EntrySize(name))
		} else {
			fmt.Fprintf(w, "  %s %s (skipped)\n", skipMark("-"), name)
		}
	}

	archive, err := usecase.OpenArchive(data)
	if err != nil {
		fmt.Fprintf(w, "%s %s: %d of %d required components found\n",
			bad("NG"), path, len(listing.Entries), model.MinShapefileEntries)
		return goerr.Wrap(err, "archive is invalid", goerr.V("path", path))
	}

	fmt.Fprintf(w, "%s %s: %d components, table name %q\n",
		good("OK"), path, len(archive.Entries), archive.BaseName())
	return nil
}
