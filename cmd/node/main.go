package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/synnergy-network/dpos-node/internal/config"
	"github.com/synnergy-network/dpos-node/internal/core"
	"github.com/synnergy-network/dpos-node/internal/logging"
	"github.com/synnergy-network/dpos-node/internal/peerapi"
)

// node wires every component constructed from a loaded Config: the pieces
// `serve` and `forge-once` both need.
type node struct {
	cfg       *config.Config
	log       logrus.FieldLogger
	clock     core.SlotClock
	chain     *core.ChainStore
	pool      *core.TxPool
	queue     *core.TxQueue
	poolState *core.AccountState
	confirmed *core.AccountState
	pipeline  *core.Pipeline
	delegates *core.RoundRobinDelegates
	forgeKey  core.KeyPair
}

// newNode assembles the pipeline described in config, seeding the chain
// store with a fresh genesis block signed by an ephemeral forging key.
// Deriving delegate identity and keys from a real wallet/vote roster is
// out of scope; newNode generates one forging keypair per process and
// runs a single-delegate round-robin roster from it.
func newNode(cfg *config.Config, log logrus.FieldLogger) (*node, error) {
	forgeKey, err := core.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate forging key: %w", err)
	}
	delegates := core.NewRoundRobinDelegates([]core.PublicKey{forgeKey.Public})

	storage := core.NewMemStorage()
	chain, err := core.NewChainStore(cfg.Storage.ChainStoreDepth, storage)
	if err != nil {
		return nil, fmt.Errorf("build chain store: %w", err)
	}

	clock := core.NewSlotClock(cfg.Consensus.EpochStartMillis)
	genesisSlot := clock.SlotAt(time.Now())
	genesis := core.NewGenesisBlock(cfg.Consensus.BlockVersion, uint32(clock.SlotTime(genesisSlot)), forgeKey)
	if err := chain.PushBlock(genesis, false); err != nil {
		return nil, fmt.Errorf("push genesis block: %w", err)
	}

	poolState := core.NewAccountState()
	confirmed := core.NewAccountState()
	pool := core.NewTxPool(poolState)
	queue := core.NewTxQueue(pool, poolState)

	pcfg := core.PipelineConfig{
		MaxTxPerBlock: cfg.Consensus.MaxTxPerBlock,
		MaxBlockBytes: cfg.Consensus.MaxBlockBytes,
		Version:       cfg.Consensus.BlockVersion,
	}
	pipeline := core.NewPipeline(pcfg, clock, delegates, chain, pool, queue, poolState, confirmed, storage)
	pipeline.Log = logging.Component(log, "pipeline")

	return &node{
		cfg:       cfg,
		log:       log,
		clock:     clock,
		chain:     chain,
		pool:      pool,
		queue:     queue,
		poolState: poolState,
		confirmed: confirmed,
		pipeline:  pipeline,
		delegates: delegates,
		forgeKey:  forgeKey,
	}, nil
}

// forgeLoop generates one block per slot boundary until stop is closed.
func (n *node) forgeLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(core.SlotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			slot := n.clock.SlotAt(now)
			createdAt := uint32(n.clock.SlotTime(slot))
			if _, err := n.pipeline.GenerateBlock(n.forgeKey, createdAt); err != nil {
				n.log.WithError(err).Warn("forge loop: block generation skipped")
			}
		}
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	env, _ := cmd.Flags().GetString("env")
	return config.Load(env)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "node", Short: "dpos-node: a delegated proof-of-stake block producer"}
	root.PersistentFlags().String("env", "", "environment overlay config file (e.g. sandbox)")
	root.AddCommand(newServeCmd())
	root.AddCommand(newForgeOnceCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the peer HTTP API and the slot-driven forge loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
			if err != nil {
				return err
			}
			n, err := newNode(cfg, log)
			if err != nil {
				return err
			}

			stop := make(chan struct{})
			go n.forgeLoop(stop)

			api := peerapi.New(n.chain, log)
			srv := &http.Server{Addr: cfg.PeerAPI.ListenAddr, Handler: api.Router()}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			serveErr := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.PeerAPI.ListenAddr).Info("peer api listening")
				serveErr <- srv.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				close(stop)
				n.pipeline.Shutdown()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case s := <-sig:
				log.WithField("signal", s.String()).Info("shutdown requested")
				close(stop)
				n.pipeline.Shutdown()
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					return fmt.Errorf("shut down peer api: %w", err)
				}
				return nil
			}
		},
	}
}

func newForgeOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forge-once",
		Short: "generate a single block atop the current chain tip and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
			if err != nil {
				return err
			}
			n, err := newNode(cfg, log)
			if err != nil {
				return err
			}
			slot := n.clock.SlotAt(time.Now()) + 1
			createdAt := uint32(n.clock.SlotTime(slot))
			block, err := n.pipeline.GenerateBlock(n.forgeKey, createdAt)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(block)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "inspect node configuration"}
	show := &cobra.Command{
		Use:   "show",
		Short: "print the resolved configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
	cmd.AddCommand(show)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
