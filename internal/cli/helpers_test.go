package cli

import "github.com/Swind/go-forkjoin-bench/internal/config"

func defaultTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Parallelism = 2
	cfg.Iterations = 1
	cfg.Size = 1000
	cfg.N = 100
	cfg.StreamN = 100
	cfg.NoColor = true
	return &cfg
}
