// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/lib/archivefs"
	"github.com/bureau-foundation/archivist/lib/cli"
	"github.com/bureau-foundation/archivist/lib/config"
	"github.com/bureau-foundation/archivist/lib/logging"
	"github.com/bureau-foundation/archivist/lib/mirror"
)

type mountFlags struct {
	configPath   string
	logFile      string
	maxOpenFiles int
	allowOther   bool
	allowRoot    bool
	debug        bool
}

func mountCommand() *cli.Command {
	var flags mountFlags
	var flagSet *pflag.FlagSet
	return &cli.Command{
		Name:    "mount",
		Summary: "Mount the replica set as a filesystem",
		Usage:   "archivist mount [flags] [<mountpoint> <replica-root>...]",
		Description: "Serve the replica roots through a FUSE mount. Every block read is\n" +
			"checked against its digest and damaged replicas are repaired from a\n" +
			"good copy. The first replica root is the authority and its position\n" +
			"must not change between mounts.\n\n" +
			"Positional arguments override the mountpoint and replicas from the\n" +
			"config file. The mount runs until interrupted.",
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("mount", pflag.ContinueOnError)
			flagSet.StringVar(&flags.configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
			flagSet.StringVar(&flags.logFile, "log-file", "", "operation log, truncated at mount")
			flagSet.IntVar(&flags.maxOpenFiles, "max-open-files", 0, "limit on concurrently open files")
			flagSet.BoolVar(&flags.allowOther, "allow-other", false, "let other users access the mount")
			flagSet.BoolVar(&flags.allowRoot, "allow-root", false, "permit running as root")
			flagSet.BoolVar(&flags.debug, "debug", false, "trace FUSE requests on stderr")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Mount two replicas", Command: "archivist mount /mnt/archive /srv/replica0 /srv/replica1"},
			{Description: "Mount from a config file", Command: "archivist mount --config /etc/archivist.yaml"},
		},
		Run: func(args []string) error {
			cfg, err := mountConfig(flags, flagSet, args)
			if err != nil {
				return err
			}
			return runMount(cfg, flags.debug)
		},
	}
}

// mountConfig layers the config file, flags, and positional arguments.
func mountConfig(flags mountFlags, flagSet *pflag.FlagSet, args []string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case flags.configPath != "":
		cfg, err = config.LoadFile(flags.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if flagSet != nil {
		if flagSet.Changed("log-file") {
			cfg.LogFile = flags.logFile
		}
		if flagSet.Changed("max-open-files") {
			cfg.MaxOpenFiles = flags.maxOpenFiles
		}
		if flagSet.Changed("allow-other") {
			cfg.AllowOther = flags.allowOther
		}
		if flagSet.Changed("allow-root") {
			cfg.AllowRoot = flags.allowRoot
		}
	}
	if len(args) > 0 {
		cfg.Mountpoint = args[0]
	}
	if len(args) > 1 {
		cfg.Replicas = args[1:]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMount(cfg *config.Config, debug bool) error {
	if !cfg.AllowRoot && (os.Getuid() == 0 || os.Getgid() == 0) {
		return errors.New("refusing to mount as root; running as root opens security holes (use --allow-root to override)")
	}

	tree, err := mirror.NewTree(cfg.Replicas)
	if err != nil {
		return err
	}

	logger, logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	server, err := archivefs.Mount(archivefs.Options{
		Mountpoint:   cfg.Mountpoint,
		Tree:         tree,
		MaxOpenFiles: cfg.MaxOpenFiles,
		AllowOther:   cfg.AllowOther,
		Debug:        debug,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	status := cli.NewCommandLogger()
	status.Info("mounted", "mountpoint", cfg.Mountpoint, "authority", tree.Roots()[0], "replicas", tree.Len())
	logging.Info(logger, "mount", cfg.Mountpoint, "replicas", tree.Roots())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An external fusermount -u ends the serve loop without a signal.
	go func() {
		server.Wait()
		stop()
	}()

	<-ctx.Done()
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmounting %s: %w", cfg.Mountpoint, err)
	}
	logging.Info(logger, "unmount", cfg.Mountpoint)
	status.Info("unmounted", "mountpoint", cfg.Mountpoint)
	return nil
}
