package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gnosisguild/enclave-sub005/pkg/config"
	"github.com/gnosisguild/enclave-sub005/pkg/netrpc"
)

func pidPath(folder string) string { return path.Join(folder, "enclave.pid") }

func writePidFile(folder string) error {
	return os.WriteFile(pidPath(folder), []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func removePidFile(folder string) { _ = os.Remove(pidPath(folder)) }

func controlClient(c *cli.Context) (*netrpc.ControlClient, error) {
	return netrpc.NewControlClient(c.String(controlFlag.Name))
}

func nodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "Manage local daemons",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Start a daemon in the background",
				Flags:  []cli.Flag{folderFlag, configFlag, controlFlag, addressFlag, passwordFlag},
				Action: nodesUp,
			},
			{
				Name:   "start",
				Usage:  "Alias for up",
				Flags:  []cli.Flag{folderFlag, configFlag, controlFlag, addressFlag, passwordFlag},
				Action: nodesUp,
			},
			{
				Name:   "down",
				Usage:  "Stop the daemon gracefully",
				Flags:  []cli.Flag{controlFlag},
				Action: nodesDown,
			},
			{
				Name:   "stop",
				Usage:  "Alias for down",
				Flags:  []cli.Flag{controlFlag},
				Action: nodesDown,
			},
			{
				Name:  "ps",
				Usage: "Show the daemon's status",
				Flags: []cli.Flag{controlFlag},
				Action: func(c *cli.Context) error {
					client, err := controlClient(c)
					if err != nil {
						return err
					}
					defer client.Close()
					ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					st, err := client.Status(ctx)
					if err != nil {
						return fmt.Errorf("daemon not reachable on control port %s: %w", c.String(controlFlag.Name), err)
					}
					fmt.Printf("last_seq=%d armed=%v chains=%v\n", st.LastSeq, st.Armed, st.Chains)
					return nil
				},
			},
			{
				Name:  "restart",
				Usage: "Stop then start the daemon",
				Flags: []cli.Flag{folderFlag, configFlag, controlFlag, addressFlag, passwordFlag},
				Action: func(c *cli.Context) error {
					if err := nodesDown(c); err != nil {
						fmt.Println("daemon was not running")
					}
					return nodesUp(c)
				},
			},
			{
				Name:  "purge",
				Usage: "Delete the node's database, including the keystore (the libp2p identity file is kept)",
				Flags: []cli.Flag{folderFlag},
				Action: func(c *cli.Context) error {
					cfg := config.NewConfig(config.WithConfigFolder(c.String(folderFlag.Name)))
					if !confirm(fmt.Sprintf("delete %s", cfg.DBFolder())) {
						return nil
					}
					return os.RemoveAll(cfg.DBFolder())
				},
			},
		},
	}
}

func nodesUp(c *cli.Context) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}
	args := []string{"start",
		"--folder", c.String(folderFlag.Name),
		"--control", c.String(controlFlag.Name),
	}
	if v := c.String(configFlag.Name); v != "" {
		args = append(args, "--config", v)
	}
	if v := c.String(addressFlag.Name); v != "" {
		args = append(args, "--address", v)
	}
	if v := c.String(passwordFlag.Name); v != "" {
		args = append(args, "--password-file", v)
	}
	cmd := exec.Command(self, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	fmt.Printf("daemon starting, pid %d\n", cmd.Process.Pid)
	return cmd.Process.Release()
}

func nodesDown(c *cli.Context) error {
	client, err := controlClient(c)
	if err != nil {
		return err
	}
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Shutdown(ctx); err != nil {
		return fmt.Errorf("daemon not reachable on control port %s: %w", c.String(controlFlag.Name), err)
	}
	fmt.Println("shutdown requested")
	return nil
}
