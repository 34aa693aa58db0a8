package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/llm-defender/defender-go/config"
	"github.com/llm-defender/defender-go/core/coordinator"
	"github.com/llm-defender/defender-go/core/mock"
	"github.com/llm-defender/defender-go/log"
	"github.com/llm-defender/defender-go/node"
)

var version = "2.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "defender-go"
	app.Version = version
	app.Usage = "coordinator node for the llm-defender worker-incentive network"
	app.Flags = config.Flags()

	app.Action = func(ctx *cli.Context) error {
		cfg, err := config.MakeConfig(ctx)
		if err != nil {
			return err
		}
		if err := log.SetVerbosity(cfg.Verbosity); err != nil {
			return err
		}

		collab, err := makeCollaborators(cfg)
		if err != nil {
			return err
		}

		n, err := node.New(cfg, collab)
		if err != nil {
			return err
		}
		n.Start()
		n.WaitForStop()
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit(err.Error())
		os.Exit(1)
	}
}

// makeCollaborators resolves the chain-facing collaborators. The chain
// registry, transport and wallet clients ship separately; without them
// only the mock set can run.
func makeCollaborators(cfg *config.Config) (coordinator.Collaborators, error) {
	if !cfg.Mock {
		return coordinator.Collaborators{},
			errors.New("chain collaborators are not configured, run with --mock for a local dry-run")
	}
	signer := mock.NewSigner()
	return coordinator.Collaborators{
		Registry:   mock.NewRegistry(64, signer.Hotkey()),
		Transport:  mock.NewTransport(time.Now().UnixNano()),
		Signer:     signer,
		Comparator: mock.Comparator{},
		Similarity: mock.FixedSignal{},
		Base:       mock.FixedSignal{},
		Duplicate:  mock.FixedSignal{},
	}, nil
}
