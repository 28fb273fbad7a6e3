package main

import (
	"context"

	_ "github.com/jimmicro/version"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jimyag/kvm-backup/internal/backup"
	"github.com/jimyag/kvm-backup/internal/backup/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "kvm-backup",
	Short: "Crash-consistent backups of running libvirt domains",
	Long: `kvm-backup creates crash-consistent backups of running KVM domains
without pausing the guest: it takes an external disk-only snapshot,
copies the frozen base images to the backup directory, then merges the
accumulated guest writes back with a live block commit and pivot.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backup cycle over all running domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load config")
			return err
		}

		app, err := backup.New(cfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create backup app")
			return err
		}

		return app.Run(context.Background())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("kvm-backup failed")
	}
}
