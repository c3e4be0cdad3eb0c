package usecase

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
)

// ErrInvalidArchive is returned when the upload is not a zip archive or lacks
// required shapefile components.
var ErrInvalidArchive = errors.New("invalid shapefile archive")

// OpenArchive parses zip data held in memory and checks that it contains at
// least model.MinShapefileEntries recognized shapefile components.
func OpenArchive(data []byte) (*model.ShapefileArchive, error) {
	if len(data) == 0 {
		return nil, goerr.Wrap(ErrInvalidArchive, "archive is empty")
	}

	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidArchive, "failed to read zip archive", goerr.V("cause", err.Error()))
	}

	archive := model.NewShapefileArchive(zipReader, int64(len(data)))
	if len(archive.Entries) < model.MinShapefileEntries {
		msg := fmt.Sprintf("missing some shapefiles, found %d of %v: %s",
			len(archive.Entries), model.ShapefileSuffixes, strings.Join(archive.Entries, ", "))
		return nil, goerr.Wrap(ErrInvalidArchive, msg,
			goerr.V("found", archive.Entries),
			goerr.V("required", model.ShapefileSuffixes),
		)
	}

	return archive, nil
}
