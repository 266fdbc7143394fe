package main

import (
	"fmt"

	"github.com/jason-s-yu/burgerlab/service/internal/artifact"
	"github.com/jason-s-yu/burgerlab/service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:   "burgerlab",
		Short: "Shielded human/robot cooperation study server",
		Long: `burgerlab runs the burger-kitchen cooperation study: a participant and a
robot share a 5x5 kitchen while a synthesized strategy drives the robot and
advisers police the human's moves.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(c.envFile); err != nil {
				return fmt.Errorf("load %s: %w", c.envFile, err)
			}
			cfg, err := config.Load(c.v)
			if err != nil {
				return err
			}
			if err := cfg.SetupLogging(); err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("artifacts", "", "directory holding game, strategy and optional layout files")
	pf.String("mode", "", "adviser mode: LeastLimiting, NextMove or None")
	pf.Duration("session", 0, "session duration")
	pf.Duration("tick", 0, "session tick interval")
	pf.String("log-level", "", "log level")
	pf.String("log-format", "", "log format: text or json")
	c.bind(root, config.KeyArtifactDir, "artifacts")
	c.bind(root, config.KeyAdviserMode, "mode")
	c.bind(root, config.KeySessionDuration, "session")
	c.bind(root, config.KeyTickInterval, "tick")
	c.bind(root, config.KeyLogLevel, "log-level")
	c.bind(root, config.KeyLogFormat, "log-format")

	root.AddCommand(
		c.serveCmd(),
		c.simulateCmd(),
		c.validateCmd(),
		c.dotCmd(),
		c.hashPasswordCmd(),
	)
	return root
}

// bind ties a config key to a flag of cmd, persistent or local.
func (c *cli) bind(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := c.v.BindPFlag(key, f); err != nil {
		logrus.WithError(err).Fatalf("Bind flag --%s", flag)
	}
}

// loadBundle loads and validates the configured artifacts.
func (c *cli) loadBundle() (*artifact.Bundle, error) {
	b, err := artifact.LoadDir(c.cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"dir":   c.cfg.ArtifactDir,
		"nodes": len(b.Graph.Nodes),
		"edges": len(b.Graph.Edges),
	}).Debug("Artifacts loaded")
	return b, nil
}
