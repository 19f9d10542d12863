// SPDX-License-Identifier: Apache-2.0

package command

import (
	"github.com/urfave/cli/v2"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/config"
)

// Args holds every value a CLI flag can bind into, whether the flag
// applies to a rooted mount, a whole-namespace mount, or both.
type Args struct {
	APIHost string
	APIPort int
	Timeout string

	ResolveCacheSize       int
	LsCacheSize            int
	BlockCacheSize         int
	AttrCacheSize          int
	SubblockCIDsCacheSize  int
	SubblockSizesCacheSize int

	AttrTimeout string
	AllowOther  bool
	NoThreads   bool
	Background  bool

	LogDir      string
	LogLevel    string
	LogToStdout bool
	Verbose     bool

	MetricsAddress string

	ConfigPath string

	// Mountpoint and RootCID are positional, not flags; set by main
	// after cli.Context.Args() parsing.
	Mountpoint string
	RootCID    string
}

type Flags struct {
	Args *Args
	F    []cli.Flag
}

func buildFlags(args *Args) []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "api-host",
			Value:       def.APIHost,
			Usage:       "`HOST` the IPFS daemon's HTTP API listens on",
			Destination: &args.APIHost,
		},
		&cli.IntFlag{
			Name:        "api-port",
			Value:       def.APIPort,
			Usage:       "`PORT` the IPFS daemon's HTTP API listens on",
			Destination: &args.APIPort,
		},
		&cli.StringFlag{
			Name:        "timeout",
			Value:       def.Timeout.String(),
			Usage:       "`DURATION` bounding every daemon RPC issued while servicing a FUSE callback",
			Destination: &args.Timeout,
		},
		&cli.StringFlag{
			Name:        "attr-timeout",
			Value:       def.AttrTimeout.String(),
			Usage:       "`DURATION` the kernel caches attributes for, independent of Reader-side caching",
			Destination: &args.AttrTimeout,
		},
		&cli.IntFlag{
			Name:        "resolve-cache-size",
			Value:       def.ResolveCacheSize,
			Usage:       "entries to retain in the path-resolve cache",
			Destination: &args.ResolveCacheSize,
		},
		&cli.IntFlag{
			Name:        "ls-cache-size",
			Value:       def.LsCacheSize,
			Usage:       "entries to retain in the directory-listing cache",
			Destination: &args.LsCacheSize,
		},
		&cli.IntFlag{
			Name:        "block-cache-size",
			Value:       def.BlockCacheSize,
			Usage:       "entries to retain in the inline/raw block cache",
			Destination: &args.BlockCacheSize,
		},
		&cli.IntFlag{
			Name:        "attr-cache-size",
			Value:       def.AttrCacheSize,
			Usage:       "entries to retain in the cid_type and path_size caches",
			Destination: &args.AttrCacheSize,
		},
		&cli.IntFlag{
			Name:        "subblock-cids-cache-size",
			Value:       def.SubblockCIDsCacheSize,
			Usage:       "entries to retain in the subblock-CID cache",
			Destination: &args.SubblockCIDsCacheSize,
		},
		&cli.IntFlag{
			Name:        "subblock-sizes-cache-size",
			Value:       def.SubblockSizesCacheSize,
			Usage:       "entries to retain in the subblock-size cache",
			Destination: &args.SubblockSizesCacheSize,
		},
		&cli.BoolFlag{
			Name:        "allow-other",
			Usage:       "allow users other than the mount owner to access the filesystem",
			Destination: &args.AllowOther,
		},
		&cli.BoolFlag{
			Name:        "no-threads",
			Usage:       "serialize all FUSE callbacks onto one goroutine instead of the kernel's worker pool",
			Destination: &args.NoThreads,
		},
		&cli.BoolFlag{
			Name:        "background",
			Usage:       "daemonize after the mount is ready instead of running in the foreground",
			Destination: &args.Background,
		},
		&cli.StringFlag{
			Name:        "log-dir",
			Usage:       "set `DIRECTORY` to store log files, required unless --log-to-stdout",
			Destination: &args.LogDir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       def.LogLevel,
			Aliases:     []string{"l"},
			Usage:       "set the logging `LEVEL` [trace, debug, info, warn, error, fatal, panic]",
			Destination: &args.LogLevel,
		},
		&cli.BoolFlag{
			Name:        "log-to-stdout",
			Usage:       "log messages to standard out rather than files",
			Destination: &args.LogToStdout,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Usage:       "enable debug-level FUSE tracing",
			Destination: &args.Verbose,
		},
		&cli.StringFlag{
			Name:        "metrics-address",
			Usage:       "enable the Prometheus metrics server by setting an `ADDRESS` such as \":9100\"",
			Destination: &args.MetricsAddress,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to a TOML configuration `FILE`, overlaid with defaults and overlaid by any flag set explicitly",
			Destination: &args.ConfigPath,
		},
	}
}

func NewFlags() *Flags {
	var args Args
	return &Flags{
		Args: &args,
		F:    buildFlags(&args),
	}
}
