// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config loads the TOML file driving the atomvar command line:
// which coordination service to reach, where the variables live and how
// writers retry after a version conflict.
//
//	backend = "etcd"
//	parent_path = "/app/vars"
//	operation_timeout = "2s"
//	connect_retries = 3
//	log_level = "info"
//
//	[retry]
//	initial_backoff = "5ms"
//	max_backoff = "250ms"
//	jitter = 0.2
//
//	[etcd]
//	endpoints = ["127.0.0.1:2379"]
package config

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/coordination/boltdb"
	"github.com/tochemey/atomvar/coordination/consul"
	"github.com/tochemey/atomvar/coordination/etcd"
	"github.com/tochemey/atomvar/coordination/memory"
	"github.com/tochemey/atomvar/coordination/nats"
	"github.com/tochemey/atomvar/coordination/redis"
	"github.com/tochemey/atomvar/coordination/zookeeper"
	"github.com/tochemey/atomvar/internal/validation"
	"github.com/tochemey/atomvar/log"
	"github.com/tochemey/atomvar/tls"
	"github.com/tochemey/atomvar/variables"
)

// Backend names a coordination service implementation
type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendBoltDB    Backend = "boltdb"
	BackendEtcd      Backend = "etcd"
	BackendNATS      Backend = "nats"
	BackendConsul    Backend = "consul"
	BackendRedis     Backend = "redis"
	BackendZooKeeper Backend = "zookeeper"
)

// Backends lists the supported backends
var Backends = []Backend{
	BackendMemory,
	BackendBoltDB,
	BackendEtcd,
	BackendNATS,
	BackendConsul,
	BackendRedis,
	BackendZooKeeper,
}

const (
	defaultParentPath = "/atomvar"
	defaultBoltPath   = "atomvar.db"
	defaultLogLevel   = "info"
)

// Config is the content of the configuration file
type Config struct {
	Backend          Backend       `toml:"backend"`
	ParentPath       string        `toml:"parent_path"`
	OperationTimeout time.Duration `toml:"operation_timeout"`
	ConnectRetries   int           `toml:"connect_retries"`
	LogLevel         string        `toml:"log_level"`

	Retry     Retry     `toml:"retry"`
	BoltDB    BoltDB    `toml:"boltdb"`
	Etcd      Etcd      `toml:"etcd"`
	NATS      NATS      `toml:"nats"`
	Consul    Consul    `toml:"consul"`
	Redis     Redis     `toml:"redis"`
	ZooKeeper ZooKeeper `toml:"zookeeper"`
}

// Retry is the [retry] table
type Retry struct {
	InitialBackoff time.Duration `toml:"initial_backoff"`
	MaxBackoff     time.Duration `toml:"max_backoff"`
	Jitter         float64       `toml:"jitter"`
	MaxAttempts    int           `toml:"max_attempts"`
	Timeout        time.Duration `toml:"timeout"`
}

// BoltDB is the [boltdb] table
type BoltDB struct {
	Path        string        `toml:"path"`
	Bucket      string        `toml:"bucket"`
	OpenTimeout time.Duration `toml:"open_timeout"`
	NoSync      bool          `toml:"no_sync"`
}

// Etcd is the [etcd] table
type Etcd struct {
	Endpoints   []string      `toml:"endpoints"`
	Namespace   string        `toml:"namespace"`
	DialTimeout time.Duration `toml:"dial_timeout"`
	Timeout     time.Duration `toml:"timeout"`
	Username    string        `toml:"username"`
	Password    string        `toml:"password"`
	TLS         tls.Info      `toml:"tls"`
}

// NATS is the [nats] table
type NATS struct {
	URL            string        `toml:"url"`
	Bucket         string        `toml:"bucket"`
	Replicas       int           `toml:"replicas"`
	Timeout        time.Duration `toml:"timeout"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
}

// Consul is the [consul] table
type Consul struct {
	Address       string        `toml:"address"`
	Datacenter    string        `toml:"datacenter"`
	Token         string        `toml:"token"`
	Prefix        string        `toml:"prefix"`
	Timeout       time.Duration `toml:"timeout"`
	WatchWaitTime time.Duration `toml:"watch_wait_time"`
}

// Redis is the [redis] table
type Redis struct {
	Addr        string        `toml:"addr"`
	Username    string        `toml:"username"`
	Password    string        `toml:"password"`
	DB          int           `toml:"db"`
	Prefix      string        `toml:"prefix"`
	DialTimeout time.Duration `toml:"dial_timeout"`
	Timeout     time.Duration `toml:"timeout"`
	TLS         tls.Info      `toml:"tls"`
}

// ZooKeeper is the [zookeeper] table
type ZooKeeper struct {
	Servers        []string      `toml:"servers"`
	Root           string        `toml:"root"`
	SessionTimeout time.Duration `toml:"session_timeout"`
	DialTimeout    time.Duration `toml:"dial_timeout"`
}

var _ validation.Validator = (*Config)(nil)

// Default returns the configuration used when no file is given:
// a local bbolt file under /atomvar with the default retry policy.
func Default() *Config {
	policy := variables.DefaultRetryPolicy()
	return &Config{
		Backend:        BackendBoltDB,
		ParentPath:     defaultParentPath,
		ConnectRetries: 1,
		LogLevel:       defaultLogLevel,
		Retry: Retry{
			InitialBackoff: policy.InitialBackoff,
			MaxBackoff:     policy.MaxBackoff,
			Jitter:         policy.Jitter,
			MaxAttempts:    policy.MaxAttempts,
			Timeout:        policy.Timeout,
		},
		BoltDB: BoltDB{Path: defaultBoltPath},
	}
}

// Load reads the file at path over the defaults, then sanitizes and validates it.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	config := Default()
	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return finish(config, meta)
}

// Parse is Load for in-memory content
func Parse(content string) (*Config, error) {
	config := Default()
	meta, err := toml.Decode(content, config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return finish(config, meta)
}

func finish(config *Config, meta toml.MetaData) (*Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Sanitize normalizes names and fills empty fields with defaults
func (c *Config) Sanitize() {
	c.Backend = Backend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Backend == "" {
		c.Backend = BackendBoltDB
	}

	// "/" and "" both denote the root of the service
	c.ParentPath = strings.TrimSpace(c.ParentPath)
	if c.ParentPath == "/" {
		c.ParentPath = ""
	}

	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 1
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	if c.BoltDB.Path == "" {
		c.BoltDB.Path = defaultBoltPath
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.AllErrors()).
		AddAssertion(slices.Contains(Backends, c.Backend), fmt.Sprintf("backend %q is not supported", c.Backend)).
		AddValidator(validation.NewParentPathValidator(c.ParentPath)).
		AddAssertion(c.OperationTimeout >= 0, "operation_timeout must not be negative").
		AddAssertion(slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, c.LogLevel),
			fmt.Sprintf("log_level %q is not supported", c.LogLevel)).
		AddValidator(c.RetryPolicy()).
		AddValidator(c.Etcd.TLS).
		AddValidator(c.Redis.TLS).
		Validate()
}

// RetryPolicy returns the [retry] table as a variables.RetryPolicy
func (c *Config) RetryPolicy() *variables.RetryPolicy {
	return &variables.RetryPolicy{
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Jitter:         c.Retry.Jitter,
		MaxAttempts:    c.Retry.MaxAttempts,
		Timeout:        c.Retry.Timeout,
	}
}

// Logger returns a zap logger at the configured level
func (c *Config) Logger(writers ...io.Writer) log.Logger {
	return log.NewZap(log.ParseLevel(c.LogLevel), writers...)
}

// NamespaceOptions returns the variables options described by the file
func (c *Config) NamespaceOptions(logger log.Logger) []variables.Option {
	return []variables.Option{
		variables.WithLogger(logger),
		variables.WithRetryPolicy(c.RetryPolicy()),
		variables.WithConnectRetries(c.ConnectRetries),
		variables.WithOperationTimeout(c.OperationTimeout),
	}
}

// Dialer builds the dialer of the configured backend. The backend
// settings are sanitized and validated; nothing is dialed yet.
func (c *Config) Dialer(logger log.Logger) (coordination.Dialer, error) {
	if logger == nil {
		logger = log.DiscardLogger
	}

	switch c.Backend {
	case BackendMemory:
		return memory.NewServer().Dialer(), nil
	case BackendBoltDB:
		config := &boltdb.Config{
			Path:        c.BoltDB.Path,
			Bucket:      c.BoltDB.Bucket,
			OpenTimeout: c.BoltDB.OpenTimeout,
			NoSync:      c.BoltDB.NoSync,
			Logger:      logger,
		}
		return dialer(config, boltdb.NewDialer)
	case BackendEtcd:
		tlsConfig, err := c.Etcd.TLS.ClientConfig()
		if err != nil {
			return nil, err
		}
		config := &etcd.Config{
			Endpoints:   c.Etcd.Endpoints,
			Namespace:   c.Etcd.Namespace,
			DialTimeout: c.Etcd.DialTimeout,
			Timeout:     c.Etcd.Timeout,
			TLS:         tlsConfig,
			Username:    c.Etcd.Username,
			Password:    c.Etcd.Password,
			Logger:      logger,
		}
		return dialer(config, etcd.NewDialer)
	case BackendNATS:
		config := &nats.Config{
			URL:            c.NATS.URL,
			Bucket:         c.NATS.Bucket,
			Replicas:       c.NATS.Replicas,
			Timeout:        c.NATS.Timeout,
			ConnectTimeout: c.NATS.ConnectTimeout,
			Logger:         logger,
		}
		return dialer(config, nats.NewDialer)
	case BackendConsul:
		config := &consul.Config{
			Address:       c.Consul.Address,
			Datacenter:    c.Consul.Datacenter,
			Token:         c.Consul.Token,
			Prefix:        c.Consul.Prefix,
			Timeout:       c.Consul.Timeout,
			WatchWaitTime: c.Consul.WatchWaitTime,
			Logger:        logger,
		}
		return dialer(config, consul.NewDialer)
	case BackendRedis:
		tlsConfig, err := c.Redis.TLS.ClientConfig()
		if err != nil {
			return nil, err
		}
		config := &redis.Config{
			Addr:        c.Redis.Addr,
			Username:    c.Redis.Username,
			Password:    c.Redis.Password,
			DB:          c.Redis.DB,
			Prefix:      c.Redis.Prefix,
			DialTimeout: c.Redis.DialTimeout,
			Timeout:     c.Redis.Timeout,
			TLS:         tlsConfig,
			Logger:      logger,
		}
		return dialer(config, redis.NewDialer)
	case BackendZooKeeper:
		config := &zookeeper.Config{
			Servers:        c.ZooKeeper.Servers,
			Root:           c.ZooKeeper.Root,
			SessionTimeout: c.ZooKeeper.SessionTimeout,
			DialTimeout:    c.ZooKeeper.DialTimeout,
			Logger:         logger,
		}
		return dialer(config, zookeeper.NewDialer)
	default:
		return nil, fmt.Errorf("backend %q is not supported", c.Backend)
	}
}

// Connect dials the configured backend and opens the namespace
func (c *Config) Connect(ctx context.Context, logger log.Logger) (*variables.Namespace, error) {
	dialer, err := c.Dialer(logger)
	if err != nil {
		return nil, err
	}
	return variables.Connect(ctx, c.ParentPath, dialer, c.NamespaceOptions(logger)...)
}

type backendConfig interface {
	validation.Validator
	Sanitize()
}

func dialer[T backendConfig](config T, build func(T) coordination.Dialer) (coordination.Dialer, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return build(config), nil
}
