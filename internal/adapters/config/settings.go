// Package config loads runtime settings and the bucket catalog.
package config

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/zerr"
)

// EnvPrefix is the prefix of environment overrides, e.g. HAUL_STORE or HAUL_S3_REGION.
const EnvPrefix = "HAUL"

// Blob store kinds.
const (
	StoreHTTP = "http"
	StoreS3   = "s3"
	StoreSSH  = "ssh"
	StoreDir  = "dir"
)

// Settings holds the resolved configuration of one invocation.
type Settings struct {
	Root          string          `mapstructure:"root"`
	Manifests     string          `mapstructure:"manifests"`
	Buckets       string          `mapstructure:"buckets"`
	Store         string          `mapstructure:"store"`
	Architectures []string        `mapstructure:"architectures"`
	Workers       int             `mapstructure:"workers"`
	CommonDir     string          `mapstructure:"common_dir"`
	LinkMode      string          `mapstructure:"link_mode"`
	DumpFile      string          `mapstructure:"dump_file"`
	S3            S3Settings      `mapstructure:"s3"`
	SSH           SSHSettings     `mapstructure:"ssh"`
	Dir           DirSettings     `mapstructure:"dir"`
	HTTP          HTTPSettings    `mapstructure:"http"`
	Log           LogSettings     `mapstructure:"log"`
	OTel          OTelSettings    `mapstructure:"otel"`
	Versions      VersionSettings `mapstructure:"versions"`
}

// S3Settings configures the anonymous object store client.
type S3Settings struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// SSHSettings configures the ssh store.
type SSHSettings struct {
	Host    string `mapstructure:"host"`
	User    string `mapstructure:"user"`
	BaseDir string `mapstructure:"base_dir"`
}

// DirSettings configures the local mirror store.
type DirSettings struct {
	Path      string `mapstructure:"path"`
	Algorithm string `mapstructure:"algorithm"`
}

// HTTPSettings configures the http store.
type HTTPSettings struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogSettings configures the logger.
type LogSettings struct {
	JSON bool `mapstructure:"json"`
}

// OTelSettings configures trace export.
type OTelSettings struct {
	Endpoint string `mapstructure:"endpoint"`
}

// VersionSettings pins the releases used by the built-in catalog.
type VersionSettings struct {
	Tappas  string `mapstructure:"tappas"`
	Hailo8  string `mapstructure:"hailo8"`
	Hailo10 string `mapstructure:"hailo10"`
}

// Load reads haul.yaml (or .json) from dir when present, then applies HAUL_* environment overrides.
func Load(dir string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(domain.ConfigFileName)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Join(domain.ErrConfigReadFailed, zerr.With(zerr.Wrap(err, "config file"), "dir", dir))
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Join(domain.ErrConfigReadFailed, zerr.Wrap(err, "decode settings"))
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("manifests", "requirements")
	v.SetDefault("buckets", "")
	v.SetDefault("store", StoreHTTP)
	v.SetDefault("architectures", []string{"h8", "h10"})
	v.SetDefault("workers", 1)
	v.SetDefault("common_dir", "")
	v.SetDefault("link_mode", "symlink")
	v.SetDefault("dump_file", domain.DumpFileName)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("ssh.host", "")
	v.SetDefault("ssh.user", "")
	v.SetDefault("ssh.base_dir", "")
	v.SetDefault("dir.path", "")
	v.SetDefault("dir.algorithm", string(domain.MD5))
	v.SetDefault("http.timeout", 5*time.Minute)
	v.SetDefault("log.json", false)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("versions.tappas", domain.DefaultVersions.Tappas)
	v.SetDefault("versions.hailo8", domain.DefaultVersions.Hailo8)
	v.SetDefault("versions.hailo10", domain.DefaultVersions.Hailo10)
}

func (s *Settings) normalize() error {
	if s.Workers < 1 {
		s.Workers = 1
	}

	s.Store = strings.ToLower(s.Store)
	if !slices.Contains([]string{StoreHTTP, StoreS3, StoreSSH, StoreDir}, s.Store) {
		return zerr.With(zerr.Wrap(domain.ErrUnknownStore, "store kind is not supported"), "store", s.Store)
	}

	if _, err := domain.ParseAlgorithm(s.Dir.Algorithm); err != nil {
		return err
	}

	archs := make([]string, 0, len(s.Architectures))
	for _, a := range s.Architectures {
		a = strings.TrimSpace(a)
		if a != "" && !slices.Contains(archs, a) {
			archs = append(archs, a)
		}
	}
	s.Architectures = archs
	return nil
}

// VersionPins converts the version settings for the default catalog.
func (s *Settings) VersionPins() domain.Versions {
	return domain.Versions{
		Tappas:  s.Versions.Tappas,
		Hailo8:  s.Versions.Hailo8,
		Hailo10: s.Versions.Hailo10,
	}
}
