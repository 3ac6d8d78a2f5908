// Package config holds the relay configuration. Every option is a command
// line flag that can also be set through an environment variable named
// RELAY_<FLAG>, with dashes replaced by underscores. PRIVATE_KEY and
// VOTE_FACTORY_ADDRESS are accepted as aliases of the signer key and the
// factory address.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/selfpoll-relay/admission"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/service"
	"github.com/vocdoni/selfpoll-relay/util"
	"github.com/vocdoni/selfpoll-relay/web3"
)

// EnvPrefix is the prefix of the environment variables that override flags.
const EnvPrefix = "RELAY_"

// Database types.
const (
	DBTypePebble   = "pebble"
	DBTypeMemory   = "memory"
	DBTypePostgres = "postgres"
)

const (
	// DefaultRPC is the Celo mainnet endpoint used by the original relay.
	DefaultRPC = "https://forno.celo.org"
	// DefaultGasPriceGwei is the fixed gas price of relayed transactions.
	DefaultGasPriceGwei = 30
)

// envAliases maps legacy environment variables to flag names.
var envAliases = map[string]string{
	"PRIVATE_KEY":          "privkey",
	"VOTE_FACTORY_ADDRESS": "factory",
}

// Config is the full relay configuration.
type Config struct {
	LogLevel  string
	LogOutput string

	Host          string
	Port          int
	SessionSecret string

	DBType  string
	DataDir string
	DSN     string

	RPC                 []string
	PrivateKey          string
	FactoryAddress      string
	GasPriceGwei        uint64
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
	MonitorInterval     time.Duration

	IdentityAppName           string
	IdentityScope             string
	IdentityEndpoint          string
	IdentityMinimumAge        int
	IdentityOFAC              bool
	IdentityExcludedCountries []string
}

// Default returns the configuration with every default value set.
func Default() *Config {
	return &Config{
		LogLevel:            log.LogLevelInfo,
		LogOutput:           "stdout",
		Host:                "0.0.0.0",
		Port:                8080,
		DBType:              DBTypePebble,
		DataDir:             "./data",
		RPC:                 []string{DefaultRPC},
		GasPriceGwei:        DefaultGasPriceGwei,
		ConfirmationTimeout: admission.DefaultConfirmationTimeout,
		ReceiptPollInterval: web3.DefaultReceiptPollInterval,
		MonitorInterval:     service.DefaultMonitorInterval,
		IdentityAppName:     "selfpoll",
	}
}

// Flags returns a flag set bound to c. The current values of c are the flag
// defaults.
func (c *Config) Flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&c.LogOutput, "log-output", c.LogOutput, "log output (stdout, stderr or a file path)")
	fs.StringVar(&c.Host, "host", c.Host, "API listen host")
	fs.IntVar(&c.Port, "port", c.Port, "API listen port")
	fs.StringVar(&c.SessionSecret, "session-secret", c.SessionSecret, "HMAC secret of the session tokens, restricted endpoints are closed if empty")
	fs.StringVar(&c.DBType, "db-type", c.DBType, "storage backend (pebble, memory, postgres)")
	fs.StringVar(&c.DataDir, "datadir", c.DataDir, "data directory of the pebble storage")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "postgres connection string")
	fs.StringSliceVar(&c.RPC, "rpc", c.RPC, "web3 RPC endpoints, the first one reachable is used")
	fs.StringVar(&c.PrivateKey, "privkey", c.PrivateKey, "hex private key of the relay account")
	fs.StringVar(&c.FactoryAddress, "factory", c.FactoryAddress, "voting factory (registry) contract address")
	fs.Uint64Var(&c.GasPriceGwei, "gas-price", c.GasPriceGwei, "gas price of relayed transactions in gwei")
	fs.DurationVar(&c.ConfirmationTimeout, "confirmation-timeout", c.ConfirmationTimeout, "wait for a relayed transaction to be mined")
	fs.DurationVar(&c.ReceiptPollInterval, "receipt-poll-interval", c.ReceiptPollInterval, "polling interval of transaction receipts")
	fs.DurationVar(&c.MonitorInterval, "monitor-interval", c.MonitorInterval, "polling interval of new voting contracts")
	fs.StringVar(&c.IdentityAppName, "identity-app-name", c.IdentityAppName, "application name shown by the identity wallet")
	fs.StringVar(&c.IdentityScope, "identity-scope", c.IdentityScope, "identity verification scope, challenges are disabled if empty")
	fs.StringVar(&c.IdentityEndpoint, "identity-endpoint", c.IdentityEndpoint, "public URL of the verify endpoint, challenges are disabled if empty")
	fs.IntVar(&c.IdentityMinimumAge, "identity-minimum-age", c.IdentityMinimumAge, "minimum age the proof must disclose")
	fs.BoolVar(&c.IdentityOFAC, "identity-ofac", c.IdentityOFAC, "require the OFAC check")
	fs.StringSliceVar(&c.IdentityExcludedCountries, "identity-excluded-countries", c.IdentityExcludedCountries, "ISO 3166 alpha-3 codes of excluded countries")
	return fs
}

// envName returns the environment variable bound to a flag.
func envName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// applyEnv sets every flag not given on the command line from its
// environment variable, if present.
func applyEnv(fs *flag.FlagSet, lookup func(string) (string, bool)) error {
	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil || f.Changed {
			return
		}
		if v, ok := lookup(envName(f.Name)); ok {
			if serr := fs.Set(f.Name, v); serr != nil {
				err = fmt.Errorf("invalid %s: %w", envName(f.Name), serr)
			}
		}
	})
	if err != nil {
		return err
	}
	for env, name := range envAliases {
		f := fs.Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		if _, ok := lookup(envName(name)); ok {
			continue
		}
		if v, ok := lookup(env); ok {
			if err := fs.Set(name, v); err != nil {
				return fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	return nil
}

// Load parses the command line arguments over the defaults, applies the
// environment overrides and validates the result.
func Load(name string, args []string, lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	fs := c.Flags(name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := applyEnv(fs, lookup); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration. A malformed factory address fails with
// ErrInvalidContractAddress.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.DBType {
	case DBTypePebble:
		if c.DataDir == "" {
			return fmt.Errorf("datadir is required by the %s storage", DBTypePebble)
		}
	case DBTypePostgres:
		if c.DSN == "" {
			return fmt.Errorf("dsn is required by the %s storage", DBTypePostgres)
		}
	case DBTypeMemory:
	default:
		return fmt.Errorf("unknown db type %q", c.DBType)
	}
	rpcs := c.RPC[:0]
	for _, r := range c.RPC {
		if r = strings.TrimSpace(r); r != "" {
			rpcs = append(rpcs, r)
		}
	}
	c.RPC = rpcs
	if len(c.RPC) == 0 {
		return fmt.Errorf("at least one rpc endpoint is required")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	if _, err := crypto.HexToECDSA(util.TrimHex(c.PrivateKey)); err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	if _, err := web3.ParseAddress(c.FactoryAddress); err != nil {
		return err
	}
	if c.GasPriceGwei == 0 {
		return fmt.Errorf("gas price must be positive")
	}
	if c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation timeout must be positive")
	}
	return nil
}

// GasPrice returns the configured gas price in wei.
func (c *Config) GasPrice() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(c.GasPriceGwei), big.NewInt(params.GWei))
}
