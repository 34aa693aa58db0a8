package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/llm-defender/defender-go/log"
)

type Config struct {
	DataDir           string
	Verbosity         string
	Alpha             float64
	QueryTimeoutSec   int
	BlacklistTimeout  int
	PromptTimeoutSec  int
	SyncTimeoutSec    int
	RoundIntervalSec  int
	MaxTargets        int
	ValidatorMinStake float64
	LoadState         bool
	BlacklistAPIURL   string
	PromptAPIURL      string
	SubnetVersion     string
	Mock              bool
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSec) * time.Second
}

func (c *Config) BlacklistFetchTimeout() time.Duration {
	return time.Duration(c.BlacklistTimeout) * time.Second
}

func (c *Config) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutSec) * time.Second
}

func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.SyncTimeoutSec) * time.Second
}

func (c *Config) RoundInterval() time.Duration {
	return time.Duration(c.RoundIntervalSec) * time.Second
}

func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "miners.json")
}

func (c *Config) LocalBlacklistPath() string {
	return filepath.Join(c.DataDir, "miner_blacklist.json")
}

// MakeConfig builds the effective configuration: defaults, overridden
// by the JSON config file, overridden by command line flags.
func MakeConfig(ctx *cli.Context) (*Config, error) {
	cfg := getDefaultConfig()

	if file := ctx.String(CfgFileFlag.Name); file != "" {
		if err := loadConfig(file, cfg); err != nil {
			return nil, err
		}
	}

	applyFlags(ctx, cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, errors.Wrap(err, "unable to create datadir")
	}
	return cfg, nil
}

func getDefaultConfig() *Config {
	return &Config{
		DataDir:           DefaultDataDir,
		Verbosity:         DefaultVerbosity,
		Alpha:             DefaultAlpha,
		QueryTimeoutSec:   DefaultQueryTimeoutSec,
		BlacklistTimeout:  DefaultBlacklistTimeout,
		PromptTimeoutSec:  DefaultPromptTimeoutSec,
		SyncTimeoutSec:    DefaultSyncTimeoutSec,
		RoundIntervalSec:  DefaultRoundIntervalSec,
		MaxTargets:        DefaultMaxTargets,
		ValidatorMinStake: DefaultValidatorMinStake,
		LoadState:         true,
		BlacklistAPIURL:   DefaultBlacklistAPIURL,
		PromptAPIURL:      DefaultPromptAPIURL,
		SubnetVersion:     DefaultSubnetVersion,
	}
}

func loadConfig(configPath string, cfg *Config) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return errors.Errorf("config file cannot be found, path: %v", configPath)
	}

	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		return errors.Wrapf(err, "unable to read config file, path: %v", configPath)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "unable to parse config file, path: %v", configPath)
	}
	log.Debug("Loaded config file", "path", configPath)
	return nil
}

func applyFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.String(DataDirFlag.Name)
	}
	if ctx.IsSet(AlphaFlag.Name) {
		cfg.Alpha = ctx.Float64(AlphaFlag.Name)
	}
	if ctx.IsSet(QueryTimeoutFlag.Name) {
		cfg.QueryTimeoutSec = ctx.Int(QueryTimeoutFlag.Name)
	}
	if ctx.IsSet(MaxTargetsFlag.Name) {
		cfg.MaxTargets = ctx.Int(MaxTargetsFlag.Name)
	}
	if ctx.IsSet(MinStakeFlag.Name) {
		cfg.ValidatorMinStake = ctx.Float64(MinStakeFlag.Name)
	}
	if ctx.IsSet(LoadStateFlag.Name) {
		cfg.LoadState = ctx.BoolT(LoadStateFlag.Name)
	}
	if ctx.IsSet(BlacklistURLFlag.Name) {
		cfg.BlacklistAPIURL = ctx.String(BlacklistURLFlag.Name)
	}
	if ctx.IsSet(PromptAPIURLFlag.Name) {
		cfg.PromptAPIURL = ctx.String(PromptAPIURLFlag.Name)
	}
	if ctx.IsSet(VerbosityFlag.Name) {
		cfg.Verbosity = ctx.String(VerbosityFlag.Name)
	}
	if ctx.IsSet(MockFlag.Name) {
		cfg.Mock = ctx.Bool(MockFlag.Name)
	}
}

func (c *Config) validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return errors.Errorf("alpha must be in (0,1], got %v", c.Alpha)
	}
	if c.QueryTimeoutSec <= 0 {
		return errors.Errorf("timeout must be positive, got %v", c.QueryTimeoutSec)
	}
	if c.MaxTargets <= 0 {
		return errors.Errorf("maxtargets must be positive, got %v", c.MaxTargets)
	}
	return nil
}
