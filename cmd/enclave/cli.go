package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/urfave/cli/v2"

	"github.com/gnosisguild/enclave-sub005/pkg/adapters/keystore"
	"github.com/gnosisguild/enclave-sub005/pkg/adapters/netpeer"
	"github.com/gnosisguild/enclave-sub005/pkg/config"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
)

var (
	folderFlag = &cli.StringFlag{
		Name:  "folder",
		Usage: "Folder holding the node's key material and data",
		Value: config.DefaultConfigFolder(),
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to a TOML config file",
	}
	controlFlag = &cli.StringFlag{
		Name:  "control",
		Usage: "Port of the local control surface",
		Value: config.DefaultControlPort,
	}
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "This node's on-chain address (its committee identity)",
	}
	passwordFlag = &cli.StringFlag{
		Name:  "password-file",
		Usage: "File holding the node passphrase; ENCLAVE_PASSWORD is used otherwise",
	}
	httpFlag = &cli.StringFlag{
		Name:  "http",
		Usage: "Address for the diagnostics HTTP surface (empty disables)",
	}
	metricsFlag = &cli.StringFlag{
		Name:  "metrics",
		Usage: "Address for the Prometheus surface (empty disables)",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "Gossip network id to join (empty disables libp2p)",
	}
	historyFlag = &cli.BoolFlag{
		Name:  "history",
		Usage: "Capture all bus events for diagnostic replay",
	}
)

// CLI assembles the enclave command surface (spec §6).
func CLI() *cli.App {
	return &cli.App{
		Name:  "enclave",
		Usage: "distributed ciphernode for threshold FHE ceremonies",
		Commands: []*cli.Command{
			startCommand(),
			initCommand(),
			nodesCommand(),
			passwordCommand(),
			netCommand(),
			walletCommand(),
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the node folder and a default config file",
		Flags: []cli.Flag{folderFlag},
		Action: func(c *cli.Context) error {
			folder, err := config.EnsureNodeFolder(c.String(folderFlag.Name))
			if err != nil {
				return err
			}
			cfgPath := path.Join(folder, "enclave.toml")
			if config.FileExists(cfgPath) {
				fmt.Printf("config already present at %s\n", cfgPath)
				return nil
			}
			defaults := fmt.Sprintf("folder = %q\ncontrol_port = %q\nstorage_engine = %q\n",
				folder, config.DefaultControlPort, config.DefaultStorageEngine)
			if err := os.WriteFile(cfgPath, []byte(defaults), 0o600); err != nil {
				return err
			}
			fmt.Printf("initialized node folder at %s\n", folder)
			return nil
		},
	}
}

// readPassphrase resolves the node passphrase: --password-file first, the
// ENCLAVE_PASSWORD environment variable otherwise.
func readPassphrase(c *cli.Context) ([]byte, error) {
	if p := c.String(passwordFlag.Name); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		return []byte(strings.TrimSpace(string(raw))), nil
	}
	if env := os.Getenv("ENCLAVE_PASSWORD"); env != "" {
		return []byte(env), nil
	}
	return nil, fmt.Errorf("no passphrase: pass --password-file or set ENCLAVE_PASSWORD")
}

func openKeystore(c *cli.Context) (*keystore.Keystore, func(), error) {
	cfg := config.NewConfig(config.WithConfigFolder(c.String(folderFlag.Name)))
	backend, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, err
	}
	ks := keystore.New(backend)
	pass, err := readPassphrase(c)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	if err := ks.SetPassword(pass); err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return ks, func() {
		ks.DeletePassword()
		_ = backend.Close()
	}, nil
}

func passwordCommand() *cli.Command {
	return &cli.Command{
		Name:  "password",
		Usage: "Manage the node passphrase",
		Subcommands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Verify and cache the passphrase against the stored key material",
				Flags: []cli.Flag{folderFlag, passwordFlag},
				Action: func(c *cli.Context) error {
					ks, done, err := openKeystore(c)
					if err != nil {
						return err
					}
					defer done()
					if has, _ := ks.HasWallet(c.Context); has {
						if _, err := ks.Wallet(c.Context); err != nil {
							return fmt.Errorf("passphrase does not open the stored wallet: %w", err)
						}
					}
					fmt.Println("passphrase accepted")
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Forget the cached passphrase (stored ciphertexts are untouched)",
				Flags: []cli.Flag{folderFlag, passwordFlag},
				Action: func(c *cli.Context) error {
					_, done, err := openKeystore(c)
					if err != nil {
						return err
					}
					done()
					fmt.Println("passphrase forgotten")
					return nil
				},
			},
		},
	}
}

func walletCommand() *cli.Command {
	keyFlag := &cli.StringFlag{Name: "private-key", Usage: "Hex-encoded wallet private key"}
	return &cli.Command{
		Name:  "wallet",
		Usage: "Manage the node's wallet key (encrypted at rest)",
		Subcommands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Store a wallet private key under the passphrase",
				Flags: []cli.Flag{folderFlag, passwordFlag, keyFlag},
				Action: func(c *cli.Context) error {
					raw, err := hex.DecodeString(strings.TrimPrefix(c.String(keyFlag.Name), "0x"))
					if err != nil {
						return fmt.Errorf("bad private key hex: %w", err)
					}
					ks, done, err := openKeystore(c)
					if err != nil {
						return err
					}
					defer done()
					if err := ks.SetWallet(c.Context, raw); err != nil {
						return err
					}
					fmt.Println("wallet stored")
					return nil
				},
			},
			{
				Name:  "get",
				Usage: "Print the stored wallet private key",
				Flags: []cli.Flag{folderFlag, passwordFlag},
				Action: func(c *cli.Context) error {
					ks, done, err := openKeystore(c)
					if err != nil {
						return err
					}
					defer done()
					raw, err := ks.Wallet(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("0x%s\n", hex.EncodeToString(raw))
					return nil
				},
			},
		},
	}
}

func identityPath(c *cli.Context) string {
	return path.Join(c.String(folderFlag.Name), "libp2p.key")
}

func netCommand() *cli.Command {
	keyFlag := &cli.StringFlag{Name: "key", Usage: "Base64-encoded ed25519 libp2p private key"}
	return &cli.Command{
		Name:  "net",
		Usage: "Manage the libp2p identity",
		Subcommands: []*cli.Command{
			{
				Name:  "get-peer-id",
				Usage: "Print the peer id of the stored (or freshly generated) identity",
				Flags: []cli.Flag{folderFlag},
				Action: func(c *cli.Context) error {
					priv, err := netpeer.LoadOrCreatePrivKey(identityPath(c), elog.DefaultLogger())
					if err != nil {
						return err
					}
					id, err := peer.IDFromPrivateKey(priv)
					if err != nil {
						return err
					}
					fmt.Println(id.String())
					return nil
				},
			},
			{
				Name:  "generate",
				Usage: "Generate a fresh identity if none exists",
				Flags: []cli.Flag{folderFlag},
				Action: func(c *cli.Context) error {
					if _, err := netpeer.LoadOrCreatePrivKey(identityPath(c), elog.DefaultLogger()); err != nil {
						return err
					}
					fmt.Printf("identity at %s\n", identityPath(c))
					return nil
				},
			},
			{
				Name:  "set",
				Usage: "Import a caller-provided identity",
				Flags: []cli.Flag{folderFlag, keyFlag},
				Action: func(c *cli.Context) error {
					return netpeer.ImportPrivKey(identityPath(c), c.String(keyFlag.Name))
				},
			},
			{
				Name:  "purge",
				Usage: "Delete the stored identity",
				Flags: []cli.Flag{folderFlag},
				Action: func(c *cli.Context) error {
					return netpeer.PurgeIdentity(identityPath(c))
				},
			},
		},
	}
}

// confirm prompts on stdin before destructive operations.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
