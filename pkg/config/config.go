// Package config loads the driver's startup configuration: an optional
// YAML file for the bulk of the settings, with environment variables (and
// a local .env) always taking precedence over whatever the file says.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mempool describes one broadcast endpoint the submitter fans a settlement
// transaction out to.
type Mempool struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Config is everything the driver needs to start one solver's competition
// loop and HTTP API.
type Config struct {
	SolverName     string        `yaml:"solverName"`
	SolverEndpoint string        `yaml:"solverEndpoint"`
	ChainID        uint64        `yaml:"chainId"`
	WethAddress    string        `yaml:"wethAddress"`
	SettlementAddr string        `yaml:"settlementAddress"`
	SolverAddress  string        `yaml:"solverAddress"`
	NodeURL        string        `yaml:"nodeUrl"`
	SimulatorURL   string        `yaml:"simulatorNodeUrl"`
	Mempools       []Mempool     `yaml:"mempools"`
	StorePath      string        `yaml:"storePath"`

	SolverTimeoutBuffer time.Duration `yaml:"-"`
	HTTPTimeout         time.Duration `yaml:"-"`
	MetricsBind         string        `yaml:"metricsBind"`
	ListenAddr          string        `yaml:"listenAddr"`
	AllowedOrigins      []string      `yaml:"allowedOrigins"`
	AuditDSN            string        `yaml:"auditDsn"`
	LogFile             string        `yaml:"logFile"`
}

// Default returns the baseline configuration that file and environment
// overrides are applied on top of. It leaves settlementAddress,
// solverAddress and mempools unset, so Default alone does not pass Validate.
func Default() Config {
	return Config{
		SolverName:          "baseline",
		SolverEndpoint:      "http://localhost:8000/solve",
		ChainID:             1,
		WethAddress:         "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		NodeURL:             "http://localhost:8545",
		SimulatorURL:        "http://localhost:8545",
		StorePath:           "./data/mempool",
		SolverTimeoutBuffer: 2 * time.Second,
		HTTPTimeout:         10 * time.Second,
		MetricsBind:         ":9090",
		ListenAddr:          ":8080",
		AllowedOrigins:      []string{"*"},
	}
}

// Load reads path (if non-empty) as YAML over the defaults, then applies
// environment variable overrides on top. Priority: ENV > file > defaults,
// matching the rest of this codebase's configuration idiom.
func Load(path, envPath string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SOLVER_NAME"); v != "" {
		cfg.SolverName = v
	}
	if v := os.Getenv("SOLVER_ENDPOINT"); v != "" {
		cfg.SolverEndpoint = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.ChainID = n
		}
	}
	if v := os.Getenv("WETH_ADDRESS"); v != "" {
		cfg.WethAddress = v
	}
	if v := os.Getenv("SETTLEMENT_ADDRESS"); v != "" {
		cfg.SettlementAddr = v
	}
	if v := os.Getenv("SOLVER_ADDRESS"); v != "" {
		cfg.SolverAddress = v
	}
	if v := os.Getenv("NODE_URL"); v != "" {
		cfg.NodeURL = v
	}
	if v := os.Getenv("SIMULATOR_NODE_URL"); v != "" {
		cfg.SimulatorURL = v
	}
	if v := os.Getenv("MEMPOOLS"); v != "" {
		cfg.Mempools = parseMempools(v)
	}
	if v := os.Getenv("SOLVER_TIMEOUT_BUFFER_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.SolverTimeoutBuffer = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("HTTP_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.HTTPTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("METRICS_BIND"); v != "" {
		cfg.MetricsBind = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("AUDIT_DSN"); v != "" {
		cfg.AuditDSN = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// parseMempools decodes "name=url,name=url,..." into Mempool entries.
func parseMempools(v string) []Mempool {
	var out []Mempool
	for _, pair := range strings.Split(v, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, Mempool{Name: parts[0], URL: parts[1]})
	}
	return out
}

// Validate rejects a configuration that's missing what the driver needs to
// start at all. It does not reach out to the network: dial failures surface
// at startup time from the caller, not here.
func (c Config) Validate() error {
	if c.SolverEndpoint == "" {
		return fmt.Errorf("config: solverEndpoint is required")
	}
	if c.NodeURL == "" {
		return fmt.Errorf("config: nodeUrl is required")
	}
	if !common.IsHexAddress(c.WethAddress) {
		return fmt.Errorf("config: wethAddress %q is not a valid address", c.WethAddress)
	}
	if !common.IsHexAddress(c.SettlementAddr) {
		return fmt.Errorf("config: settlementAddress %q is not a valid address", c.SettlementAddr)
	}
	if !common.IsHexAddress(c.SolverAddress) {
		return fmt.Errorf("config: solverAddress %q is not a valid address", c.SolverAddress)
	}
	if len(c.Mempools) == 0 {
		return fmt.Errorf("config: at least one mempool endpoint is required")
	}
	return nil
}
