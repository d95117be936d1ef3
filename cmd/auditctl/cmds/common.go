package cmds

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/auditctl/pkg/config"
	"github.com/go-go-golems/auditctl/pkg/credentials"
	"github.com/go-go-golems/auditctl/pkg/stream"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	Config      string
	Server      string
	Token       string
	MetricsAddr string
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root)
}

func addRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "Path to config file (defaults to .auditctl.yaml in the current directory)")
	root.PersistentFlags().String("server", "", "Audit API base URL (overrides config)")
	root.PersistentFlags().String("token", "", "Bearer token (overrides config and "+config.DefaultTokenEnv+")")
	root.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
		cfgPath = config.DefaultPath(cwd)
	}
	cfgPath, err = filepath.Abs(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}

	server, err := flags.GetString("server")
	if err != nil {
		return rootOptions{}, err
	}
	token, err := flags.GetString("token")
	if err != nil {
		return rootOptions{}, err
	}
	metricsAddr, err := flags.GetString("metrics-addr")
	if err != nil {
		return rootOptions{}, err
	}

	return rootOptions{
		Config:      cfgPath,
		Server:      server,
		Token:       token,
		MetricsAddr: metricsAddr,
	}, nil
}

// streamFlags are the per-command knobs layered over the config file.
type streamFlags struct {
	AfterSequence    int64
	MaxReconnects    int
	HeartbeatTimeout time.Duration
	NoThinking       bool
	NoToolCalls      bool
}

func (f *streamFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&f.AfterSequence, "after-sequence", 0, "Resume after this event sequence")
	fs.IntVar(&f.MaxReconnects, "max-reconnects", 0, "Reconnect attempts before giving up (0 uses config/default)")
	fs.DurationVar(&f.HeartbeatTimeout, "heartbeat-timeout", 0, "Reconnect when no frame arrives for this long (0 uses config/default)")
	fs.BoolVar(&f.NoThinking, "no-thinking", false, "Do not request thinking tokens")
	fs.BoolVar(&f.NoToolCalls, "no-tool-calls", false, "Do not request tool call events")
}

// loadStreamSettings resolves client options and credentials for taskID from
// the config file and flags.
func loadStreamSettings(cmd *cobra.Command, taskID string, sf streamFlags) (stream.Options, credentials.Store, rootOptions, error) {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return stream.Options{}, nil, rootOptions{}, err
	}
	cfg, err := config.LoadOptional(opts.Config)
	if err != nil {
		return stream.Options{}, nil, rootOptions{}, err
	}
	if opts.Server != "" {
		cfg.Server = opts.Server
	}
	if cfg.Server == "" {
		return stream.Options{}, nil, rootOptions{}, errors.New("no server configured (use --server or set server in " + config.DefaultConfigFilename + ")")
	}

	so := cfg.StreamOptions(taskID)
	so.AfterSequence = sf.AfterSequence
	if sf.MaxReconnects > 0 {
		so.MaxReconnectAttempts = sf.MaxReconnects
	}
	if sf.HeartbeatTimeout > 0 {
		so.HeartbeatTimeout = sf.HeartbeatTimeout
	}
	if sf.NoThinking {
		so.IncludeThinking = false
	}
	if sf.NoToolCalls {
		so.IncludeToolCalls = false
	}

	creds := cfg.Credentials()
	if opts.Token != "" {
		creds = credentials.Chain{credentials.Static(opts.Token), creds}
	}
	return so, creds, opts, nil
}
