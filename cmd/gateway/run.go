package main

import (
	"context"

	"code.equilab.io/gateway/config"
	"code.equilab.io/gateway/gateway"
	"code.equilab.io/gateway/ledger"
	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/markets"
	"code.equilab.io/gateway/nonce"
	"code.equilab.io/gateway/orders"
	"code.equilab.io/gateway/pending"
	"code.equilab.io/gateway/trades"
	"code.equilab.io/gateway/wallet"

	"github.com/spf13/cobra"
)

type runCommand struct {
	command

	rootPath string
	env      string
}

func (rc *runCommand) Init(c *Cli) {
	rc.cli = c
	rc.cmd = &cobra.Command{
		Use:   "run",
		Short: "Run the gateway",
		Long:  "Serve the DEX HTTP API, signing and tracking ledger submissions on behalf of the configured signers",
		RunE:  rc.runGateway,
	}

	fs := rc.cmd.Flags()
	fs.StringVarP(&rc.rootPath, "root-path", "r", defaultRootDir(), "Path of the root directory in which the configuration is located")
	fs.StringVarP(&rc.env, "env", "e", "dev", "Environment the logger is configured for (dev gets console output, anything else JSON)")
	c.cmd.AddCommand(rc.cmd)
}

func (rc *runCommand) runGateway(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logging.NewLoggerFromEnv(rc.env)
	defer log.AtExit()

	cfg, err := config.Load(rc.rootPath)
	if err != nil {
		return err
	}

	keyring, err := wallet.New(log, cfg.Wallet)
	if err != nil {
		return err
	}

	session := ledger.NewSession(log, cfg.Ledger)
	defer session.Close()

	registry := nonce.NewRegistry(log, session)
	for _, addr := range keyring.Addresses() {
		if err := registry.Initialise(ctx, addr); err != nil {
			return err
		}
	}

	tracker := pending.NewTracker(log, cfg.Pending)

	gw := gateway.New(log, cfg.Gateway,
		orders.NewService(log, cfg.Orders, session, registry, keyring, tracker),
		markets.NewService(log, cfg.Markets, session),
		trades.NewService(log, cfg.Trades, session),
	)

	go func() {
		defer cancel()
		if err := gw.Start(); err != nil {
			log.Error("error starting gateway server", logging.Error(err))
		}
	}()

	waitSig(ctx, log)

	if err := gw.Stop(); err != nil {
		log.Error("error stopping gateway server", logging.Error(err))
	} else {
		log.Info("gateway server stopped with success")
	}

	return nil
}
