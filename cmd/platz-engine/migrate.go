package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platzio/platz/internal/config"
	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/dbstore/migrations"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.LoadFromEnv(); err != nil {
				return err
			}

			store, err := dbstore.Open(cfg.DatabaseURL)
			if err != nil {
				return errors.Wrap(err, "connecting to database")
			}
			defer store.Close()

			n, err := migrations.Up(store.DB().DB)
			if err != nil {
				return errors.Wrap(err, "applying migrations")
			}
			logrus.WithField("applied", n).Info("migrations up to date")
			return nil
		},
	}
}
