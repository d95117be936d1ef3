package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/auditctl/pkg/credentials"
	"github.com/go-go-golems/auditctl/pkg/stream"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFilename = ".auditctl.yaml"
	DefaultTokenEnv       = "AUDITCTL_TOKEN"
)

type File struct {
	Server string `yaml:"server"`

	// Token sources, tried in order: literal token, environment variable,
	// file contents.
	Token     string `yaml:"token,omitempty"`
	TokenEnv  string `yaml:"token_env,omitempty"`
	TokenFile string `yaml:"token_file,omitempty"`

	Stream    Stream    `yaml:"stream,omitempty"`
	Reconnect Reconnect `yaml:"reconnect,omitempty"`
}

type Stream struct {
	// IncludeThinking and IncludeToolCalls default to true when unset.
	IncludeThinking  *bool         `yaml:"include_thinking,omitempty"`
	IncludeToolCalls *bool         `yaml:"include_tool_calls,omitempty"`
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout,omitempty"`
	TokenYield       time.Duration `yaml:"token_yield,omitempty"`
}

type Reconnect struct {
	MaxAttempts  int           `yaml:"max_attempts,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	JitterFactor *float64      `yaml:"jitter_factor,omitempty"`
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

// Credentials returns the configured token sources, falling back to the
// AUDITCTL_TOKEN environment variable.
func (f *File) Credentials() credentials.Store {
	var chain credentials.Chain
	if f.Token != "" {
		chain = append(chain, credentials.Static(f.Token))
	}
	if f.TokenEnv != "" {
		chain = append(chain, credentials.Env{Name: f.TokenEnv})
	}
	if f.TokenFile != "" {
		chain = append(chain, credentials.File{Path: expandHome(f.TokenFile)})
	}
	chain = append(chain, credentials.Env{Name: DefaultTokenEnv})
	return chain
}

// StreamOptions converts the file into client options for taskID. Zero values
// are left for the client to default.
func (f *File) StreamOptions(taskID string) stream.Options {
	b := stream.DefaultBackoff()
	if f.Reconnect.InitialDelay > 0 {
		b.InitialDelay = f.Reconnect.InitialDelay
	}
	if f.Reconnect.MaxDelay > 0 {
		b.MaxDelay = f.Reconnect.MaxDelay
	}
	if j := f.Reconnect.JitterFactor; j != nil {
		b.JitterFactor = *j
		b.NoJitter = *j <= 0
	}
	return stream.Options{
		BaseURL:              strings.TrimRight(f.Server, "/"),
		TaskID:               taskID,
		IncludeThinking:      boolOr(f.Stream.IncludeThinking, true),
		IncludeToolCalls:     boolOr(f.Stream.IncludeToolCalls, true),
		HeartbeatTimeout:     f.Stream.HeartbeatTimeout,
		MaxReconnectAttempts: f.Reconnect.MaxAttempts,
		Backoff:              b,
		TokenYield:           f.Stream.TokenYield,
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
