package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/devicefactory"
	"github.com/srg/blepilot/internal/session"
	"github.com/srg/blepilot/pkg/config"
)

// app carries what every device command resolves from flags and config.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	profile session.Profile
	out     io.Writer
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newApp loads config, configures logging and resolves the named profile.
// An empty profile name skips profile resolution.
func newApp(cmd *cobra.Command, profileName string) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}
	if profileName == "" {
		return a, nil
	}

	address, _ := cmd.Flags().GetString("address")
	a.profile, err = resolveProfile(cfg, profileName, address)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// resolveProfile applies config overrides and the --address flag to a built-in profile.
func resolveProfile(cfg *config.Config, name, address string) (session.Profile, error) {
	p, err := session.Lookup(name)
	if err != nil {
		return session.Profile{}, err
	}
	if pc, ok := cfg.Profile(p.Name); ok {
		p = applyProfileConfig(p, pc)
	}
	if address != "" {
		p.Address = address
	}
	if err := p.Validate(); err != nil {
		return session.Profile{}, err
	}
	return p, nil
}

func applyProfileConfig(p session.Profile, pc config.ProfileConfig) session.Profile {
	if pc.NamePrefix != "" {
		p.Filter.NamePrefix = pc.NamePrefix
	}
	if len(pc.Services) > 0 {
		p.Filter.Services = append([]string(nil), pc.Services...)
	}
	if pc.Service != "" {
		p.Service = pc.Service
	}
	if pc.Characteristic != "" {
		p.Characteristic = pc.Characteristic
	}
	if pc.Address != "" {
		p.Address = pc.Address
	}
	if pc.WithoutResponse {
		p.WithResponse = false
	}
	return p
}

// openCentral opens the host adapter through the swappable factory.
func (a *app) openCentral() (device.Central, error) {
	central, err := devicefactory.NewCentral(a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bluetooth adapter: %w", err)
	}
	return central, nil
}

func (a *app) sessionOptions() *session.Options {
	opts := session.DefaultOptions()
	opts.ConnectTimeout = a.cfg.ConnectTimeout
	opts.WriteTimeout = a.cfg.WriteTimeout
	return opts
}

// connectWithProgress connects sess while showing a progress line.
func (a *app) connectWithProgress(ctx context.Context, connect func(context.Context) error, sess *session.Session) error {
	phase := "scanning"
	if sess.Address() != "" {
		phase = "dialing " + sess.Address()
	}
	progress := NewProgressPrinter(a.out, "Connecting to "+sess.Profile().Name, phase)
	progress.Start()
	defer progress.Stop()
	return connect(ctx)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
