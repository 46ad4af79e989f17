package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/marketplace/internal/app"
	"github.com/Skotchmaster/marketplace/internal/logging"
)

const addrFlag = "addr"

var serveFlags = map[string]cobraflags.Flag{
	addrFlag: &cobraflags.StringFlag{
		Name:  addrFlag,
		Value: "",
		Usage: "Listen address, overrides ADDR",
	},
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  serveCommand,
	}
	cobraflags.RegisterMap(cmd, commonFlags)
	cobraflags.RegisterMap(cmd, serveFlags)
	return cmd
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr := serveFlags[addrFlag].GetString(); addr != "" {
		cfg.Addr = addr
	}

	log := logging.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, log)

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Run(ctx, cfg.Addr); err != nil {
		return err
	}
	log.Info("shutdown_complete")
	return nil
}
