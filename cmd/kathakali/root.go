package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ayusman/kathakali/internal/config"
	"github.com/ayusman/kathakali/internal/logging"
)

// commandContext carries what PersistentPreRunE resolved for the
// subcommands.
type commandContext struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
	log        *logging.Logger
}

// flagKeys binds command line flags onto config keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"model":     "avatar.model",
	"device":    "camera.device",
	"smoothing": "render.smoothing",
	"tray":      "tray.enabled",
	"log-level": "log.level",
}

func (c *commandContext) load(cmd *cobra.Command) error {
	c.v = config.New()
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := c.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	log, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Dir:     cfg.Log.Dir,
		Console: cfg.Log.Console,
		Out:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	c.log = log
	return nil
}

func (c *commandContext) close() {
	if c.log != nil {
		c.log.Close()
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "kathakali",
		Short:         "Drive an avatar's face from a webcam",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFile, "config", "c", "", "Configuration file path")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("model", "", "glTF/GLB avatar (default: built-in ARKit channel set)")
	flags.Int("device", 0, "Camera device index")
	flags.Float64("smoothing", 0, "Head rotation smoothing rate; 0 mirrors the raw pose")
	flags.Bool("tray", false, "Show a system tray icon")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newChannelsCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))

	return rootCmd
}
