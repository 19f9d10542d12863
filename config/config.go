// SPDX-License-Identifier: Apache-2.0

// Package config is the configuration envelope for one mount: the daemon
// address, RPC timeout, per-cache capacities, and the handful of mount
// options the CLI exposes. It loads from an optional TOML file and is
// then overlaid with CLI flags, the same two-stage shape the teacher uses
// for its own snapshotter configuration.
package config

import (
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/dagreader"
)

const (
	DefaultAPIHost = "127.0.0.1"
	DefaultAPIPort = 5001

	DefaultTimeout     = 30 * time.Second
	DefaultAttrTimeout = 1 * time.Second

	DefaultLogLevel = "info"

	DefaultRotateLogMaxSize    = 100 // megabytes
	DefaultRotateLogMaxBackups = 5
	DefaultRotateLogMaxAge     = 30 // days
)

// Config is the full set of knobs a mount run accepts, whether supplied
// on the command line or loaded from a TOML file via LoadFile.
type Config struct {
	APIHost string `toml:"api_host"`
	APIPort int    `toml:"api_port"`

	Timeout     time.Duration `toml:"timeout"`
	AttrTimeout time.Duration `toml:"attr_timeout"`

	ResolveCacheSize       int `toml:"resolve_cache_size"`
	LsCacheSize            int `toml:"ls_cache_size"`
	BlockCacheSize         int `toml:"block_cache_size"`
	AttrCacheSize          int `toml:"attr_cache_size"`
	SubblockCIDsCacheSize  int `toml:"subblock_cids_cache_size"`
	SubblockSizesCacheSize int `toml:"subblock_sizes_cache_size"`

	Background  bool   `toml:"background"`
	NoThreads   bool   `toml:"no_threads"`
	AllowOther  bool   `toml:"allow_other"`
	Verbose     bool   `toml:"verbose"`
	LogDir      string `toml:"log_dir"`
	LogLevel    string `toml:"log_level"`
	LogToStdout bool   `toml:"log_to_stdout"`

	MetricsAddress string `toml:"metrics_address"`

	RotateLogMaxSize    int  `toml:"rotate_log_max_size"`
	RotateLogMaxBackups int  `toml:"rotate_log_max_backups"`
	RotateLogMaxAge     int  `toml:"rotate_log_max_age"`
	RotateLogLocalTime  bool `toml:"rotate_log_local_time"`
	RotateLogCompress   bool `toml:"rotate_log_compress"`
}

// Default returns a Config populated with this module's documented
// defaults. The --{resolve,ls,block,attr,subblock-cids,subblock-sizes}-cache-size
// CLI flags layer on top of this: "attr" covers both cid_type and path_size, since the two are
// always populated together by the same object.data call and a single
// user-facing knob is enough to size them.
func Default() Config {
	return Config{
		APIHost:                DefaultAPIHost,
		APIPort:                DefaultAPIPort,
		Timeout:                DefaultTimeout,
		AttrTimeout:            DefaultAttrTimeout,
		ResolveCacheSize:       dagreader.DefaultResolveCacheSize,
		LsCacheSize:            dagreader.DefaultLsCacheSize,
		BlockCacheSize:         dagreader.DefaultBlockCacheSize,
		AttrCacheSize:          dagreader.DefaultCidTypeCacheSize,
		SubblockCIDsCacheSize:  dagreader.DefaultSubblockCIDsCacheSize,
		SubblockSizesCacheSize: dagreader.DefaultSubblockSizesCacheSize,
		LogLevel:               DefaultLogLevel,
		RotateLogMaxSize:       DefaultRotateLogMaxSize,
		RotateLogMaxBackups:    DefaultRotateLogMaxBackups,
		RotateLogMaxAge:        DefaultRotateLogMaxAge,
	}
}

// CacheSizes derives the Cached DAG Reader's seven-cache configuration
// from the resolve/attr/ls/block/subblock knobs this Config exposes.
// cid_type and path_size always share AttrCacheSize; subblock_cids and
// subblock_sizes each have their own knob.
func (c Config) CacheSizes() dagreader.CacheSizes {
	return dagreader.CacheSizes{
		Resolve:       c.ResolveCacheSize,
		CidType:       c.AttrCacheSize,
		PathSize:      c.AttrCacheSize,
		Ls:            c.LsCacheSize,
		Block:         c.BlockCacheSize,
		SubblockCIDs:  c.SubblockCIDsCacheSize,
		SubblockSizes: c.SubblockSizesCacheSize,
	}
}

// LoadFile overlays cfg with values found in the TOML file at path. A
// missing field in the file leaves cfg's existing value untouched.
func LoadFile(path string, cfg *Config) error {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return errors.Wrapf(err, "load config file %s", path)
	}
	if err := tree.Unmarshal(cfg); err != nil {
		return errors.Wrapf(err, "unmarshal config file %s", path)
	}
	return nil
}
