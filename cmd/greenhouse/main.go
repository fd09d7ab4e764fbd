// Command greenhouse is the headless greenhouse client: it signs in, follows the
// realtime feed of readings and publishes actuator setpoints.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"greenhouse_monitor/internal/auth"
	"greenhouse_monitor/internal/config"
	"greenhouse_monitor/internal/gateway"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/repository"
	"greenhouse_monitor/internal/repository/db"

	"github.com/spf13/cobra"
)

// cli holds what every subcommand needs. It is filled in by the root's PersistentPreRunE.
type cli struct {
	configPath string

	cfg   *config.Config
	log   *logger.Logger
	db    *sql.DB
	repos *repository.Repository
	api   *gateway.Client
	coord *auth.Coordinator
	out   io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	err := newRootCmd(c).ExecuteContext(ctx)
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "greenhouse",
		Short:        "Greenhouse monitoring client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "path to config.yml (default configs/config.yml)")
	pf.String("base-url", "", "backend base URL, e.g. http://localhost:8080")
	pf.String("storage", "", "path of the local session/message database")
	pf.String("log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newForgotPasswordCmd(c),
		newResetPasswordCmd(c),
		newLogoutCmd(c),
		newStatusCmd(c),
		newWatchCmd(c),
		newPublishCmd(c),
		newHistoryCmd(c),
	)
	return root
}

// init loads configuration (flags over env over file over defaults) and wires the client.
func (c *cli) init(cmd *cobra.Command) error {
	v, err := config.NewViper(c.configPath)
	if err != nil {
		return err
	}
	pf := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"api.base_url": "base-url",
		"storage.path": "storage",
		"log.level":    "log-level",
	} {
		if f := pf.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.log = logger.Get(cfg.Log.Level)
	c.out = cmd.OutOrStdout()

	c.db, err = db.InitDB(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open local storage: %w", err)
	}
	c.repos = repository.NewRepository(c.db)
	c.api = gateway.New(gateway.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tokens:  c.repos.Session,
		Log:     c.log.Named("gateway"),
	})
	c.coord = auth.NewCoordinator(c.api, c.repos.Session, c.log.Named("auth"))
	return nil
}

func (c *cli) close() {
	if c.db == nil {
		return
	}
	if err := c.db.Close(); err != nil && c.log != nil {
		c.log.Errorw("failed to close local storage", "err", err)
	}
}
