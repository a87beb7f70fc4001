package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand(config.NewViper()).Execute(); err != nil {
		var shown shownError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// newRootCommand builds the command tree around configViper so tests can run
// isolated invocations.
func newRootCommand(configViper *viper.Viper) *cobra.Command {
	var cfgFile string
	rootCmd := &cobra.Command{
		Use:           "bookhaven",
		Short:         "Book Haven catalog client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfigFile(configViper, cfgFile)
		},
	}

	defaults := config.NewViper()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("catalog-url", defaults.GetString("catalog.base_url"), "Catalog service base URL")
	flags.String("identity-url", defaults.GetString("identity.base_url"), "Identity service base URL")
	flags.String("identity-api-key", defaults.GetString("identity.api_key"), "Identity service API key")
	flags.String("session-store", defaults.GetString("session.store_path"), "Path of the persisted session")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(configViper, rootCmd, "catalog.base_url", "catalog-url")
	bindFlag(configViper, rootCmd, "identity.base_url", "identity-url")
	bindFlag(configViper, rootCmd, "identity.api_key", "identity-api-key")
	bindFlag(configViper, rootCmd, "session.store_path", "session-store")
	bindFlag(configViper, rootCmd, "log.level", "log-level")

	rootCmd.AddCommand(
		newHomeCommand(configViper),
		newBooksCommand(configViper),
		newLoginCommand(configViper),
		newRegisterCommand(configViper),
		newLogoutCommand(configViper),
		newWhoAmICommand(configViper),
		newServeCommand(configViper),
	)
	return rootCmd
}

func bindFlag(configViper *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := configViper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func readConfigFile(configViper *viper.Viper, cfgFile string) error {
	if cfgFile == "" {
		return nil
	}
	configViper.SetConfigFile(cfgFile)
	return configViper.ReadInConfig()
}
