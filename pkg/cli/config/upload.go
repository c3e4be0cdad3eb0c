package config

import (
	"errors"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/usecase"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Upload holds the path of the upload settings file
type Upload struct {
	ConfigPath string
}

// UploadSettings is the content of the upload settings file
type UploadSettings struct {
	Defaults model.UploadDefaults
	Interval time.Duration
	UserIP   string
}

type uploadFile struct {
	SharedAccessList          *string  `toml:"shared_access_list"`
	SharedPublishedAccessList *string  `toml:"shared_published_access_list"`
	Tags                      []string `toml:"tags"`
	Interval                  string   `toml:"interval"`
	UserIP                    string   `toml:"user_ip"`
}

// Flags returns CLI flags for upload settings
func (c *Upload) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "upload-config",
			Usage:       "Path to a TOML file with access lists, default tags, upload interval and fallback user IP",
			Destination: &c.ConfigPath,
			Sources:     cli.EnvVars("MAPSDROP_UPLOAD_CONFIG"),
		},
	}
}

// Load reads the settings file. Values missing from the file, or the whole
// file when no path is set, fall back to built-in defaults.
func (c *Upload) Load() (*UploadSettings, error) {
	settings := &UploadSettings{
		Defaults: model.DefaultUploadDefaults(),
		Interval: usecase.DefaultUploadInterval,
	}
	if c.ConfigPath == "" {
		return settings, nil
	}

	fd, err := os.Open(c.ConfigPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open upload config", goerr.V("path", c.ConfigPath))
	}
	defer fd.Close()

	var file uploadFile
	dec := toml.NewDecoder(fd)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, goerr.Wrap(err, "unknown keys in upload config",
				goerr.V("path", c.ConfigPath),
				goerr.V("details", strictErr.String()),
			)
		}
		return nil, goerr.Wrap(err, "failed to parse upload config", goerr.V("path", c.ConfigPath))
	}

	if file.SharedAccessList != nil {
		settings.Defaults.SharedAccessList = *file.SharedAccessList
	}
	if file.SharedPublishedAccessList != nil {
		settings.Defaults.SharedPublishedAccessList = *file.SharedPublishedAccessList
	}
	settings.Defaults.Tags = file.Tags
	settings.UserIP = file.UserIP

	if file.Interval != "" {
		d, err := time.ParseDuration(file.Interval)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid upload interval", goerr.V("interval", file.Interval))
		}
		if d < 0 {
			return nil, goerr.New("upload interval must not be negative", goerr.V("interval", file.Interval))
		}
		settings.Interval = d
	}

	return settings, nil
}
