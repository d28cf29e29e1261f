// Package config loads surveyctl settings from a YAML file, an optional .env
// file and SURVEYCORE_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"surveycore/internal/blob"
	"surveycore/internal/core"
	"surveycore/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SURVEYCORE_"

// Config is the process configuration. Settings that travel with the survey
// snapshot (analysis, export, report) are not part of it.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Blob     Blob           `yaml:"blob"`
	HTTP     HTTP           `yaml:"http"`
	Log      logging.Config `yaml:"log"`
	Inbox    Inbox          `yaml:"inbox"`
	Autosave Duration       `yaml:"autosave_interval"`
}

type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	BlobKey     string `yaml:"blob_key"`
}

type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

type HTTP struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Inbox configures the directory watcher. An empty Dir disables it.
type Inbox struct {
	Dir       string `yaml:"dir"`
	Overwrite bool   `yaml:"overwrite"`
}

// Duration decodes YAML strings such as "30s" or bare integers as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: Storage{Driver: string(core.StorageSQLite), SQLitePath: "./surveycore.db"},
		Blob:    Blob{Driver: string(blob.DriverFilesystem), FSRoot: "./blobdata", S3: S3{Region: "us-east-1"}},
		HTTP:    HTTP{Addr: ":8080", ShutdownTimeout: Duration(10 * time.Second)},
		Log:     logging.Config{Level: "info", Format: "text", Service: "surveyctl"},
	}
}

// Load reads path (skipped when empty or missing), then envFile (same rules),
// then the process environment. Variables already set in the environment are
// not replaced by the .env file.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}
	duration := func(name string, dst *Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = Duration(d)
		return nil
	}

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("STATE_BLOB_KEY", &c.Storage.BlobKey)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_DIR", &c.Log.LogDir)
	str("INBOX_DIR", &c.Inbox.Dir)
	return errors.Join(
		boolean("BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle),
		boolean("INBOX_OVERWRITE", &c.Inbox.Overwrite),
		duration("AUTOSAVE_INTERVAL", &c.Autosave),
		duration("HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout),
	)
}

// Validate rejects unknown drivers and unusable combinations.
func (c Config) Validate() error {
	var errs []error
	switch core.StorageDriver(strings.ToLower(c.Storage.Driver)) {
	case core.StorageMemory, core.StorageSQLite, core.StorageBlob:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage: postgres driver requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	switch blob.Driver(strings.ToLower(c.Blob.Driver)) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob: s3 driver requires a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob: unknown driver %q", c.Blob.Driver))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if c.Autosave < 0 {
		errs = append(errs, errors.New("autosave_interval must not be negative"))
	}
	return errors.Join(errs...)
}

// BlobOptions converts the blob section for blob.Open. S3 credentials come
// from the default AWS chain.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{
		Driver: blob.Driver(strings.ToLower(c.Blob.Driver)),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}

// StorageOptions converts the storage section for core.OpenStateStore. The
// blob state driver shares the blob section.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(strings.ToLower(c.Storage.Driver)),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		Blob:        c.BlobOptions(),
		BlobKey:     c.Storage.BlobKey,
	}
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
