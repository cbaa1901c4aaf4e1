package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pedrabranca/geoquest/internal/config"
	"github.com/pedrabranca/geoquest/internal/storage"
)

var errMemoryStorage = errors.New("storage is in memory; set storage.sqlite.path or use postgres")

func newPlayersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Inspect and remove stored players",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <player>",
		Short: "Print a player's record and mission progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStorage(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			progress, err := storage.NewProgressStore(db.DB, db.Logger).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec := storage.NewPlayers(storage.NewKV(db.DB, db.Logger)).Load(args[0])

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"player":   args[0],
				"record":   rec,
				"progress": progress,
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget <player>",
		Short: "Delete a player's record and mission progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStorage(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			if !storage.NewPlayers(storage.NewKV(db.DB, db.Logger)).Forget(args[0]) {
				return fmt.Errorf("failed to remove record of %s", args[0])
			}
			if err := storage.NewProgressStore(db.DB, db.Logger).Save(cmd.Context(), args[0], nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// openStorage connects to the configured database. An in-memory database
// belongs to the running server, so it is refused.
func openStorage(logOut io.Writer) (*storage.Manager, error) {
	if err := config.Load(configDir); err != nil {
		fmt.Fprintln(logOut, "Failed to load config, using defaults:", err)
	}

	db := storage.NewManager(config.GetStorageConfig(), zerolog.New(logOut).Level(zerolog.WarnLevel))
	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to storage: %w", err)
	}
	if db.InMemory() {
		db.Close()
		return nil, errMemoryStorage
	}
	if err := db.Setup(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating storage: %w", err)
	}
	return db, nil
}
