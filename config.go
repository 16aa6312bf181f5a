package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jinzhu/configor"
	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/go-homedir"
)

const (
	ProviderDropbox = "dropbox"
	ProviderS3      = "s3"

	DirectionFromLocal   = "local"
	DirectionFromDropbox = "dropbox"
)

var (
	ErrRootDirMissing       = errors.New("root directory does not exist")
	ErrRootDirNotDir        = errors.New("root directory is not a folder")
	ErrCredentialsMissing   = errors.New("credentials missing")
	ErrDirectionUnsupported = errors.New("sync from the remote side is not supported")
	ErrSubfolderOutsideRoot = errors.New("subfolder is outside of the root directory")
)

type AppConfig struct {
	Provider     string `default:"dropbox" env:"DBSYNC_PROVIDER"`
	RootDir      string `default:"~/Dropbox" env:"DBSYNC_ROOTDIR"`
	Folder       string `env:"DBSYNC_FOLDER"`
	AppKey       string `env:"DBSYNC_APP_KEY"`
	AppSecret    string `env:"DBSYNC_APP_SECRET"`
	RefreshToken string `env:"DBSYNC_REFRESH_TOKEN"`
	Interval     int    `default:"86400" env:"DBSYNC_INTERVAL"`
	ChunkSize    int64  `default:"4194304" env:"DBSYNC_CHUNK_SIZE"`
	Subfolders   []string
	Watch        bool   `env:"DBSYNC_WATCH"`
	Direction    string `default:"local" env:"DBSYNC_DIRECTION"`
	Verbose      bool   `env:"DBSYNC_VERBOSE"`
	S3           S3Config
	Notify       NotifyConfig
}

type S3Config struct {
	Bucket    string `env:"DBSYNC_S3_BUCKET"`
	Region    string `env:"DBSYNC_S3_REGION"`
	Profile   string `env:"DBSYNC_S3_PROFILE"`
	Endpoint  string `env:"DBSYNC_S3_ENDPOINT"`
	AccessKey string `env:"DBSYNC_S3_ACCESS_KEY"`
	SecretKey string `env:"DBSYNC_S3_SECRET_KEY"`
}

type NotifyConfig struct {
	Region  string `env:"DBSYNC_NOTIFY_REGION"`
	Profile string `env:"DBSYNC_NOTIFY_PROFILE"`
	Topic   string `env:"DBSYNC_NOTIFY_TOPIC"`
}

// LoadConfig reads defaults, the optional config files and the environment, in
// that order of precedence.
func LoadConfig(files ...string) (AppConfig, error) {
	var appConfig AppConfig
	loader := configor.New(&configor.Config{Silent: true})
	if err := loader.Load(&appConfig, files...); err != nil {
		return appConfig, fmt.Errorf("load config: %w", err)
	}
	return appConfig, nil
}

func (c AppConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Validate checks the configuration and expands the root directory to an
// absolute path.
func (c *AppConfig) Validate() error {
	rootDir, err := homedir.Expand(c.RootDir)
	if err != nil {
		return fmt.Errorf("expand root directory: %w", err)
	}
	rootDir, err = filepath.Abs(rootDir)
	if err != nil {
		return fmt.Errorf("expand root directory: %w", err)
	}
	c.RootDir = rootDir

	info, err := os.Stat(rootDir)
	if err != nil {
		return fmt.Errorf("%w: %s does not exist on your filesystem", ErrRootDirMissing, rootDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a folder on your filesystem", ErrRootDirNotDir, rootDir)
	}

	for i, subfolder := range c.Subfolders {
		cleaned := filepath.Clean(subfolder)
		if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrSubfolderOutsideRoot, subfolder)
		}
		c.Subfolders[i] = cleaned
	}

	if c.Direction == DirectionFromDropbox {
		return ErrDirectionUnsupported
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %d", c.Interval)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}

	switch c.Provider {
	case ProviderDropbox:
		if c.AppKey == "" || c.AppSecret == "" {
			return fmt.Errorf("%w: app key and app secret are required", ErrCredentialsMissing)
		}
	case ProviderS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: s3 bucket is required", ErrCredentialsMissing)
		}
		if c.ChunkSize < S3MinChunkSize {
			return fmt.Errorf("chunk size must be at least %d bytes for s3, got %d", S3MinChunkSize, c.ChunkSize)
		}
	default:
		return fmt.Errorf("Unknown cloud provider: %s", c.Provider)
	}

	return nil
}

// ClientFromConfig builds the remote store. Without a Dropbox refresh token the
// authorization flow is run once to obtain one.
func (c *AppConfig) ClientFromConfig(ctx context.Context, auth AuthorizationFlow, clock clockwork.Clock) (RemoteStore, error) {
	switch c.Provider {
	case ProviderDropbox:
		if c.RefreshToken == "" {
			if auth == nil {
				return nil, fmt.Errorf("%w: no refresh token and no way to authorize", ErrAuthorization)
			}
			refreshToken, err := auth.Authorize(ctx)
			if err != nil {
				return nil, err
			}
			c.RefreshToken = refreshToken
		}
		return NewDropboxStore(DropboxConfig{
			AppKey:       c.AppKey,
			AppSecret:    c.AppSecret,
			RefreshToken: c.RefreshToken,
		}, clock), nil
	case ProviderS3:
		return NewS3Store(c.S3)
	default:
		return nil, fmt.Errorf("Unknown cloud provider: %s", c.Provider)
	}
}

func (c AppConfig) ConfigStringArray() []string {
	configStrArr := make([]string, 0)
	configStrArr = append(configStrArr, fmt.Sprintf("  - Provider: %s", c.Provider))
	configStrArr = append(configStrArr, fmt.Sprintf("  - RootDir: %s", c.RootDir))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Folder: %s", c.Folder))
	if c.Watch {
		configStrArr = append(configStrArr, "  - Mode: watch")
	} else {
		configStrArr = append(configStrArr, fmt.Sprintf("  - Mode: scan every %s", c.IntervalDuration()))
	}
	configStrArr = append(configStrArr, fmt.Sprintf("  - Chunk Size: %d", c.ChunkSize))

	switch c.Provider {
	case ProviderDropbox:
		configStrArr = append(configStrArr, fmt.Sprintf("  - AppKey: %s", c.AppKey))
		configStrArr = append(configStrArr, fmt.Sprintf("  - AppSecret: %s", mask(c.AppSecret)))
		configStrArr = append(configStrArr, fmt.Sprintf("  - RefreshToken: %s", mask(c.RefreshToken)))
	case ProviderS3:
		configStrArr = append(configStrArr, fmt.Sprintf("  - Bucket: %s", c.S3.Bucket))
		configStrArr = append(configStrArr, fmt.Sprintf("  - Region: %s", c.S3.Region))
		if c.S3.Endpoint != "" {
			configStrArr = append(configStrArr, fmt.Sprintf("  - Endpoint: %s", c.S3.Endpoint))
		}
	}

	if c.Notify.Topic != "" {
		configStrArr = append(configStrArr, fmt.Sprintf("  - SNSTopic: %s", c.Notify.Topic))
	}

	configStrArr = append(configStrArr, "Folders To Sync:")
	if len(c.Subfolders) == 0 {
		configStrArr = append(configStrArr, "  - (all)")
	}
	for _, subfolder := range c.Subfolders {
		configStrArr = append(configStrArr, fmt.Sprintf("  - %s", subfolder))
	}

	return configStrArr
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return strings.Repeat("*", 8)
}
