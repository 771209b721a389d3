// Command helixctl operates a HeliX vault out-of-process: registering the
// identifier a future helixd run will use, inspecting persisted chunk-store
// state, and running a manual orphan sweep. Mirrors the teacher's bosr
// lock-box CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/n1/helix/internal/chunkstore"
	"github.com/n1/helix/internal/log"
	"github.com/n1/helix/internal/vault"
)

const version = "0.0.1-dev"

func main() {
	app := &cli.App{
		Name:    "helixctl",
		Version: version,
		Usage:   "helixctl – operate a HeliX vault",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "vault",
				Aliases: []string{"v"},
				Usage:   "path to the vault database",
				Value:   "helix-vault.db",
			},
		},
		Commands: []*cli.Command{
			registerCmd,
			statusCmd,
			chunksCmd,
		},
	}

	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(zerolog.DebugLevel)
		log.EnableConsoleOutput()
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("helixctl error")
	}
}

var registerCmd = &cli.Command{
	Name:      "register",
	Usage:     "register <identifier> – remember the identifier to register on next helixd run",
	ArgsUsage: "<identifier>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("usage: register <identifier>", 1)
		}
		v, err := vault.Open(c.String("vault"))
		if err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
		defer v.Close()

		identifier := c.Args().First()
		if err := v.SetLastIdentifier(identifier); err != nil {
			return err
		}
		log.Info().Str("identifier", identifier).Msg("identifier stored")
		return nil
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "status – print the vault id and last-registered identifier",
	Action: func(c *cli.Context) error {
		v, err := vault.Open(c.String("vault"))
		if err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
		defer v.Close()

		identifier, err := v.LastIdentifier()
		if err != nil {
			return err
		}
		fmt.Printf("vault_id: %s\n", v.ID())
		if identifier == "" {
			fmt.Println("last_identifier: (none)")
		} else {
			fmt.Printf("last_identifier: %s\n", identifier)
		}
		return nil
	},
}

var chunksCmd = &cli.Command{
	Name:  "chunks",
	Usage: "inspect and sweep the durable chunk store",
	Subcommands: []*cli.Command{
		chunksListCmd,
		chunksGCCmd,
	},
}

func chunkStorePath(vaultPath string) string {
	return vaultPath + ".chunks"
}

var chunksListCmd = &cli.Command{
	Name:  "list",
	Usage: "list – print every transfer_id with chunks on disk",
	Action: func(c *cli.Context) error {
		store, err := chunkstore.Open(chunkStorePath(c.String("vault")))
		if err != nil {
			return fmt.Errorf("open chunk store: %w", err)
		}
		defer store.Close()

		ids, err := store.ListTransfers()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("(no transfers persisted)")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var chunksGCCmd = &cli.Command{
	Name:      "gc",
	Usage:     "gc [--keep id]... – delete every transfer's chunks except those named --keep",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "keep",
			Usage: "transfer_id to keep (repeatable); everything else is deleted",
		},
	},
	Action: func(c *cli.Context) error {
		store, err := chunkstore.Open(chunkStorePath(c.String("vault")))
		if err != nil {
			return fmt.Errorf("open chunk store: %w", err)
		}
		defer store.Close()

		keep := make(map[string]bool)
		for _, id := range c.StringSlice("keep") {
			keep[id] = true
		}
		n, err := store.DeleteOrphaned(keep)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d orphaned chunk rows\n", n)
		return nil
	},
}
