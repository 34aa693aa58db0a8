package node

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"

	"github.com/llm-defender/defender-go/config"
	"github.com/llm-defender/defender-go/core/coordinator"
	"github.com/llm-defender/defender-go/log"
)

// Node assembles the coordinator with its backing storage and manages
// the process lifecycle.
type Node struct {
	cfg    *config.Config
	coord  *coordinator.Coordinator
	db     dbm.DB
	cancel context.CancelFunc
	done   chan struct{}
	log    log.Logger
}

func New(cfg *config.Config, collab coordinator.Collaborators) (*Node, error) {
	db, err := dbm.NewGoLevelDB("coordinator", cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open coordinator db")
	}
	coord, err := coordinator.New(cfg, db, collab)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Node{
		cfg:   cfg,
		coord: coord,
		db:    db,
		done:  make(chan struct{}),
		log:   log.New("component", "node"),
	}, nil
}

func (n *Node) Coordinator() *coordinator.Coordinator {
	return n.coord
}

// Start launches round processing in the background.
func (n *Node) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	go func() {
		defer close(n.done)
		if err := n.coord.Start(ctx); err != nil {
			n.log.Error("Coordinator stopped", "err", err)
		}
	}()
}

// WaitForStop blocks until the coordinator exits on its own or the
// process receives an interrupt, then shuts down cleanly.
func (n *Node) WaitForStop() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case sig := <-sigc:
		n.log.Info("Got interrupt, shutting down", "sig", sig)
		n.cancel()
		<-n.done
	case <-n.done:
	}
	n.db.Close()
}
