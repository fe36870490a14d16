package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RegisterFlags adds every setting as a flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String("config", "", "Path to configuration file (YAML or JSON)")

	// Pool flags
	fs.IntP("parallelism", "p", d.Parallelism, "Target number of running pool workers")
	fs.Int("max-workers", d.MaxWorkers, "Cap on pool threads including compensation (0 = parallelism+256)")

	// Workload flags
	fs.IntP("iterations", "i", d.Iterations, "Measured runs per workload flavour")
	fs.Int("size", d.Size, "Number of ints to sort")
	fs.Int("n", d.N, "Argument of the futures factorial")
	fs.Int("stream-n", d.StreamN, "Argument of the reduction factorial")
	fs.Uint64("seed", d.Seed, "Seed of the random sort input")

	// Output flags
	fs.StringP("format", "o", d.Format, "Output format: text, json or yaml")
	fs.Bool("no-color", d.NoColor, "Disable colored output")
	fs.BoolP("verbose", "v", d.Verbose, "Print per-run worker details")
	fs.String("metrics-addr", d.MetricsAddr, "Serve Prometheus metrics on this address, e.g. :9090")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
}

// Load merges defaults, the config file named by --config, FORKJOIN_BENCH_*
// environment variables and the flags set on fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("max-workers", d.MaxWorkers)
	v.SetDefault("iterations", d.Iterations)
	v.SetDefault("size", d.Size)
	v.SetDefault("n", d.N)
	v.SetDefault("stream-n", d.StreamN)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("format", d.Format)
	v.SetDefault("no-color", d.NoColor)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("metrics-addr", d.MetricsAddr)
	v.SetDefault("log-level", d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	configPath := v.GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigFile = configPath
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))

	return cfg, nil
}
