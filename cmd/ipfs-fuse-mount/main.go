// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/containerd/log"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/cmd/ipfs-fuse-mount/pkg/command"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/config"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/internal/logging"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/dagreader"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/gateway"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/metrics"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/mountfs"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/version"
)

func buildConfig(args *command.Args) (config.Config, error) {
	cfg := config.Default()
	if args.ConfigPath != "" {
		if err := config.LoadFile(args.ConfigPath, &cfg); err != nil {
			return cfg, err
		}
	}

	overlayFlags(&cfg, args)
	return cfg, nil
}

// overlayFlags applies every flag the user actually set on top of cfg,
// the same "file first, flags win" layering the teacher applies to its
// own snapshotter configuration.
func overlayFlags(cfg *config.Config, args *command.Args) {
	cfg.APIHost = args.APIHost
	cfg.APIPort = args.APIPort
	cfg.ResolveCacheSize = args.ResolveCacheSize
	cfg.LsCacheSize = args.LsCacheSize
	cfg.BlockCacheSize = args.BlockCacheSize
	cfg.AttrCacheSize = args.AttrCacheSize
	cfg.SubblockCIDsCacheSize = args.SubblockCIDsCacheSize
	cfg.SubblockSizesCacheSize = args.SubblockSizesCacheSize
	cfg.AllowOther = args.AllowOther
	cfg.NoThreads = args.NoThreads
	cfg.Background = args.Background
	cfg.LogDir = args.LogDir
	cfg.LogLevel = args.LogLevel
	cfg.LogToStdout = args.LogToStdout
	cfg.Verbose = args.Verbose
	cfg.MetricsAddress = args.MetricsAddress

	if args.Timeout != "" {
		if d, err := time.ParseDuration(args.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if args.AttrTimeout != "" {
		if d, err := time.ParseDuration(args.AttrTimeout); err == nil {
			cfg.AttrTimeout = d
		}
	}
}

func setUpLogging(cfg config.Config) error {
	return logging.SetUp(cfg.LogLevel, cfg.LogToStdout, cfg.LogDir, &logging.RotateLogArgs{
		RotateLogMaxSize:    cfg.RotateLogMaxSize,
		RotateLogMaxBackups: cfg.RotateLogMaxBackups,
		RotateLogMaxAge:     cfg.RotateLogMaxAge,
		RotateLogLocalTime:  cfg.RotateLogLocalTime,
		RotateLogCompress:   cfg.RotateLogCompress,
	})
}

func runMount(args *command.Args, whole bool) error {
	cfg, err := buildConfig(args)
	if err != nil {
		return errors.Wrap(err, "build configuration")
	}
	if err := setUpLogging(cfg); err != nil {
		return errors.Wrap(err, "set up logging")
	}
	ctx := logging.WithContext()

	if cfg.MetricsAddress != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddress); err != nil {
				log.G(ctx).WithError(err).Error("metrics server exited")
			}
		}()
	}

	client := gateway.New(cfg.APIHost, cfg.APIPort)
	reader := dagreader.New(client, cfg.CacheSizes())

	opts := mountfs.Options{
		Timeout:     cfg.Timeout,
		AttrTimeout: cfg.AttrTimeout,
		AllowOther:  cfg.AllowOther,
		Threaded:    !cfg.NoThreads,
		Debug:       cfg.Verbose,
	}

	var server *fuse.Server
	if whole {
		server, err = mountfs.MountWhole(reader, args.Mountpoint, opts)
		if err != nil {
			return errors.Wrap(err, "mount whole namespace")
		}
	} else {
		server, err = mountfs.Mount(reader, args.RootCID, args.Mountpoint, opts)
		if err != nil {
			return errors.Wrap(err, "mount")
		}
	}

	log.G(ctx).Infof("mounted at %s, PID %d", args.Mountpoint, os.Getpid())

	if cfg.Background {
		if err := mountfs.WaitReady(args.Mountpoint); err != nil {
			return errors.Wrap(err, "wait for mount readiness")
		}
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.G(ctx).Info("received shutdown signal, unmounting")
		if err := server.Unmount(); err != nil {
			log.G(ctx).WithError(err).Error("unmount failed")
		}
	}()

	server.Wait()
	return nil
}

func main() {
	mountFlags := command.NewFlags()
	wholeFlags := command.NewFlags()

	app := &cli.App{
		Name:    "ipfs-fuse-mount",
		Usage:   "mount a UnixFS DAG served by an IPFS daemon as a read-only FUSE filesystem",
		Version: fmt.Sprintf("%s (revision %s, %s, built %s)", version.Version, version.Revision, version.GoVersion, version.BuildTimestamp),
		Commands: []*cli.Command{
			{
				Name:      "mount",
				Usage:     "mount the subtree rooted at a CID or /ipfs/... path",
				ArgsUsage: "<root-cid-or-path> <mountpoint>",
				Flags:     mountFlags.F,
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return errors.New("expected exactly two positional arguments: <root-cid-or-path> <mountpoint>")
					}
					mountFlags.Args.RootCID = c.Args().Get(0)
					mountFlags.Args.Mountpoint = c.Args().Get(1)
					return runMount(mountFlags.Args, false)
				},
			},
			{
				Name:      "mount-whole",
				Usage:     "mount the daemon's entire object namespace, one top-level entry per CID",
				ArgsUsage: "<mountpoint>",
				Flags:     wholeFlags.F,
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("expected exactly one positional argument: <mountpoint>")
					}
					wholeFlags.Args.Mountpoint = c.Args().Get(0)
					return runMount(wholeFlags.Args, true)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
