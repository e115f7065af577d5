package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/gnosisguild/enclave-sub005/pkg/config"
	"github.com/gnosisguild/enclave-sub005/pkg/node"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	var extra []config.ConfigOption
	if c.IsSet(folderFlag.Name) {
		extra = append(extra, config.WithConfigFolder(c.String(folderFlag.Name)))
	}
	if c.IsSet(controlFlag.Name) {
		extra = append(extra, config.WithControlPort(c.String(controlFlag.Name)))
	}
	if p := c.String(configFlag.Name); p != "" {
		return config.Load(p, extra...)
	}
	return config.NewConfig(extra...), nil
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Run the ciphernode daemon",
		Flags: []cli.Flag{
			folderFlag, configFlag, controlFlag, addressFlag,
			passwordFlag, httpFlag, metricsFlag, networkFlag, historyFlag,
		},
		Action: runDaemon,
	}
}

func runDaemon(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	pass, err := readPassphrase(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	n, err := node.New(ctx, node.Options{
		Config:         cfg,
		Local:          c.String(addressFlag.Name),
		SealPassphrase: pass,
		HistoryCapture: c.Bool(historyFlag.Name),
		NetworkID:      c.String(networkFlag.Name),
		HTTPAddr:       c.String(httpFlag.Name),
		MetricsAddr:    c.String(metricsFlag.Name),
	})
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		return err
	}

	if err := writePidFile(cfg.ConfigFolder()); err != nil {
		cfg.Logger().Warnw("could not write pid file", "err", err)
	}
	defer removePidFile(cfg.ConfigFolder())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		cfg.Logger().Infow("signal received, shutting down", "signal", s.String())
	case <-n.ShutdownRequested():
		cfg.Logger().Infow("shutdown requested over control surface")
	}
	n.Stop(ctx)
	return nil
}
