package main

import (
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/marketplace/internal/config"
	"github.com/Skotchmaster/marketplace/internal/logging"
)

const envFileFlag = "env-file"

// commonFlags are registered on every subcommand.
var commonFlags = map[string]cobraflags.Flag{
	envFileFlag: &cobraflags.StringFlag{
		Name:  envFileFlag,
		Value: ".env",
		Usage: "Path to a .env file loaded before reading the environment",
	},
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "marketplace",
		Short:         "Marketplace web application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

func loadConfig() (*config.Config, error) {
	return config.Load(commonFlags[envFileFlag].GetString())
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logging.New("error").Error("command_failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
