// Package cmd implements the problemsync command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcheck "github.com/jonesrussell/north-cloud/problemsync/cmd/check"
	cmdcheckpoint "github.com/jonesrussell/north-cloud/problemsync/cmd/checkpoint"
	"github.com/jonesrussell/north-cloud/problemsync/cmd/common"
	cmdserve "github.com/jonesrussell/north-cloud/problemsync/cmd/serve"
	"github.com/jonesrussell/north-cloud/problemsync/cmd/synccmd"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug forces debug-level console logging.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "problemsync",
		Short: "Sync programming problems into a Notion database",
		Long: `problemsync fetches problem pages listed in a CSV file, extracts their
description, topics, hints and related problems, and publishes one Notion
page per problem. Runs are checkpointed and resumable.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; a sync run then finishes its in-flight items and stops.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $CONFIG_PATH or ./"+common.DefaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "problemsync version %s\n", common.Version)
		},
	})

	rootCmd.AddCommand(
		synccmd.Command(),
		cmdserve.Command(),
		cmdcheck.Command(),
		cmdcheckpoint.Command(),
	)
}

// initViper binds global flags and the environment. Subcommands bind their
// own flags under the same keys as the YAML config.
func initViper() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.BindPFlag(common.KeyConfig, rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag(common.KeyDebug, rootCmd.PersistentFlags().Lookup("debug"))
}
