package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/router-for-me/proxyconsole/internal/app"
	"github.com/router-for-me/proxyconsole/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("proxyconsole failed")
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var appCfg config.AppConfig

	root := &cobra.Command{
		Use:           "proxyconsole",
		Short:         "Admin console for the platform proxy configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&appCfg.ConfigPath, "config", "c", "", "path to config.yaml (default $"+config.ConfigPathEnv+" or "+config.DefaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the console API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.RunServer(cmd.Context(), appCfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.Migrate(cmd.Context(), appCfg)
			},
		},
		newCreateAdminCommand(&appCfg),
	)
	return root
}

func newCreateAdminCommand(appCfg *config.AppConfig) *cobra.Command {
	var params app.CreateAdminParams

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a console administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			row, err := app.CreateAdmin(cmd.Context(), *appCfg, params)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (id=%d)\n", row.Username, row.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&params.Username, "username", "", "login name")
	cmd.Flags().StringVar(&params.Password, "password", "", "login password")
	cmd.Flags().BoolVar(&params.SuperAdmin, "super", false, "grant the administrator role")
	cmd.Flags().StringSliceVar(&params.Permissions, "permission", nil, "permission key to grant (repeatable)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
