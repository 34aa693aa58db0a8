package config

import "gopkg.in/urfave/cli.v1"

const (
	DefaultDataDir           = "datadir"
	DefaultAlpha             = 0.9
	DefaultQueryTimeoutSec   = 12
	DefaultBlacklistTimeout  = 12
	DefaultPromptTimeoutSec  = 6
	DefaultSyncTimeoutSec    = 30
	DefaultRoundIntervalSec  = 10
	DefaultMaxTargets        = 256
	DefaultValidatorMinStake = 1024.0
	DefaultSubnetVersion     = "2.1.0"
	DefaultBlacklistAPIURL   = "https://ujetecvbvi.execute-api.eu-west-1.amazonaws.com/default/sn14-blacklist-api"
	DefaultPromptAPIURL      = "https://api.synapsec.ai/prompt"
	DefaultVerbosity         = "info"
)

var (
	CfgFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "JSON configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "datadir for coordinator state",
	}
	AlphaFlag = cli.Float64Flag{
		Name:  "alpha",
		Usage: "EMA smoothing factor for score updates",
	}
	QueryTimeoutFlag = cli.IntFlag{
		Name:  "timeout",
		Usage: "Per-worker response timeout in seconds",
	}
	MaxTargetsFlag = cli.IntFlag{
		Name:  "maxtargets",
		Usage: "Number of workers to query per round",
	}
	MinStakeFlag = cli.Float64Flag{
		Name:  "minstake",
		Usage: "Minimum stake required for weight publication",
	}
	LoadStateFlag = cli.BoolTFlag{
		Name:  "loadstate",
		Usage: "Load persisted coordinator state on startup",
	}
	BlacklistURLFlag = cli.StringFlag{
		Name:  "blacklisturl",
		Usage: "Remote blacklist API url",
	}
	PromptAPIURLFlag = cli.StringFlag{
		Name:  "prompturl",
		Usage: "Remote prompt API url",
	}
	VerbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log verbosity (trace, debug, info, warn, error, crit)",
	}
	MockFlag = cli.BoolFlag{
		Name:  "mock",
		Usage: "Run against mock collaborators instead of the chain",
	}
)

// Flags returns the full flag set of the coordinator binary.
func Flags() []cli.Flag {
	return []cli.Flag{
		CfgFileFlag,
		DataDirFlag,
		AlphaFlag,
		QueryTimeoutFlag,
		MaxTargetsFlag,
		MinStakeFlag,
		LoadStateFlag,
		BlacklistURLFlag,
		PromptAPIURLFlag,
		VerbosityFlag,
		MockFlag,
	}
}
