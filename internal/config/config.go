package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/infrastructure/callback"
	"github.com/acc-network/relay/internal/infrastructure/chain"
	"github.com/acc-network/relay/internal/interface/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	envPrefix = "RELAY"
	appName   = "relay"

	sqliteDb = "sqlite"
	badgerDb = "badger"
)

type Config struct {
	Datadir  string `mapstructure:"DATADIR" envDefault:"relay" envInfo:"Data directory for the relay state"`
	DbType   string `mapstructure:"DB_TYPE" envDefault:"sqlite" envInfo:"Database backend, sqlite or badger"`
	HTTPPort uint32 `mapstructure:"HTTP_PORT" envDefault:"7070" envInfo:"HTTP server port"`
	LogLevel uint32 `mapstructure:"LOG_LEVEL" envDefault:"4" envInfo:"Log verbosity (higher = more verbose)"`
	LogFile  string `mapstructure:"LOG_FILE" envDefault:"" envInfo:"Optional log file, rotated when it grows past 100MB"`

	SentryDSN         string `mapstructure:"SENTRY_DSN" envDefault:"" envInfo:"Sentry DSN, error reporting is off when empty"`
	SentryEnvironment string `mapstructure:"SENTRY_ENVIRONMENT" envDefault:"development" envInfo:"Sentry environment tag"`

	AccessKey         string  `mapstructure:"ACCESS_KEY" envDefault:"" envInfo:"Key the shop backend sends on open and close endpoints"`
	CallbackEndpoint  string  `mapstructure:"CALLBACK_ENDPOINT" envDefault:"" envInfo:"URL receiving payment and shop task callbacks"`
	CallbackAccessKey string  `mapstructure:"CALLBACK_ACCESS_KEY" envDefault:"" envInfo:"Key sent along with every callback"`
	Endpoint          string  `mapstructure:"ENDPOINT" envDefault:"http://127.0.0.1:7070" envInfo:"Public URL of this relay, used by the reconciler"`
	RateLimit         float64 `mapstructure:"RATE_LIMIT" envDefault:"0" envInfo:"Requests per second allowed to each client ip, 0 disables it"`
	MetricsEnabled    bool    `mapstructure:"METRICS_ENABLED" envDefault:"true" envInfo:"Serve prometheus metrics on /metrics"`

	EncryptKey      string `mapstructure:"ENCRYPT_KEY" envDefault:"" envInfo:"Passphrase sealing the delegator keys at rest"`
	ChainRPCURL     string `mapstructure:"CHAIN_RPC_URL" envDefault:"" envInfo:"JSON-RPC endpoint of the ledger chain"`
	ChainID         int64  `mapstructure:"CHAIN_ID" envDefault:"0" envInfo:"Chain id, 0 queries the node"`
	PrivateKey      string `mapstructure:"PRIVATE_KEY" envDefault:"" envInfo:"Hex key of the account paying for relayed transactions"`
	LedgerAddress   string `mapstructure:"LEDGER_ADDRESS" envDefault:"" envInfo:"Ledger contract address"`
	ShopAddress     string `mapstructure:"SHOP_ADDRESS" envDefault:"" envInfo:"Shop contract address"`
	ConsumerAddress string `mapstructure:"CONSUMER_ADDRESS" envDefault:"" envInfo:"Loyalty consumer contract address"`
	CurrencyAddress string `mapstructure:"CURRENCY_ADDRESS" envDefault:"" envInfo:"Currency rate contract address"`
	BridgeAddress   string `mapstructure:"BRIDGE_ADDRESS" envDefault:"" envInfo:"Bridge contract address, bridge endpoints fail when empty"`
	TokenAddress    string `mapstructure:"TOKEN_ADDRESS" envDefault:"" envInfo:"Token contract address bound in bridge transfers"`

	PaymentTimeoutSecond      uint32 `mapstructure:"PAYMENT_TIMEOUT_SECOND" envDefault:"45" envInfo:"Seconds a payment may wait for approval or close"`
	ApprovalSecond            uint32 `mapstructure:"APPROVAL_SECOND" envDefault:"3" envInfo:"Seconds after open before the approval reminder is sent"`
	ForcedCloseSecond         uint32 `mapstructure:"FORCED_CLOSE_SECOND" envDefault:"300" envInfo:"Seconds before the reconciler approves a cancel with the delegator"`
	TemporaryAccountTTLSecond uint32 `mapstructure:"TEMPORARY_ACCOUNT_TTL_SECOND" envDefault:"3600" envInfo:"Lifetime of a temporary account"`
	TaskMaxAttempts           uint32 `mapstructure:"TASK_MAX_ATTEMPTS" envDefault:"5" envInfo:"Failed submissions after which a shop task fails"`
	StaleNonceWindow          uint32 `mapstructure:"STALE_NONCE_WINDOW" envDefault:"8" envInfo:"Past nonces checked to report a stale signature"`
	AllowedShopIDPrefix       string `mapstructure:"ALLOWED_SHOP_ID_PREFIX" envDefault:"0x0001" envInfo:"Prefix every shop id must carry"`

	ReconcilerExpression   string `mapstructure:"RECONCILER_EXPRESSION" envDefault:"*/1 * * * * *" envInfo:"Cron expression, with seconds, of the delegate reconciler"`
	WatcherExpression      string `mapstructure:"WATCHER_EXPRESSION" envDefault:"*/1 * * * * *" envInfo:"Cron expression, with seconds, of the payment watcher"`
	ReconcilerRemoteStatus bool   `mapstructure:"RECONCILER_REMOTE_STATUS" envDefault:"false" envInfo:"Read payment status through the relay API instead of the store"`
}

// Error reports a configuration value the relay cannot start with.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s_%s: %s", envPrefix, e.Key, e.Reason)
}

func newError(key, format string, args ...any) *Error {
	return &Error{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// LoadConfig reads the RELAY_ prefixed environment, on top of the optional
// yaml file named by RELAY_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := setDefaultConfig(v); err != nil {
		return nil, fmt.Errorf("error setting default config: %w", err)
	}

	if file := os.Getenv(envPrefix + "_CONFIG_FILE"); file != "" {
		v.SetConfigFile(cleanAndExpandPath(file))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := config.initDatadir(); err != nil {
		return nil, fmt.Errorf("error initializing data directory: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.DbType != sqliteDb && c.DbType != badgerDb {
		return newError("DB_TYPE", "unsupported db type %q", c.DbType)
	}
	if c.LogLevel > 6 {
		return newError("LOG_LEVEL", "must be between 0 and 6")
	}

	required := map[string]string{
		"ACCESS_KEY":    c.AccessKey,
		"ENCRYPT_KEY":   c.EncryptKey,
		"CHAIN_RPC_URL": c.ChainRPCURL,
		"PRIVATE_KEY":   c.PrivateKey,
	}
	for _, key := range []string{"ACCESS_KEY", "ENCRYPT_KEY", "CHAIN_RPC_URL", "PRIVATE_KEY"} {
		if strings.TrimSpace(required[key]) == "" {
			return newError(key, "missing value")
		}
	}

	addresses := []struct {
		key      string
		value    string
		optional bool
	}{
		{"LEDGER_ADDRESS", c.LedgerAddress, false},
		{"SHOP_ADDRESS", c.ShopAddress, false},
		{"CONSUMER_ADDRESS", c.ConsumerAddress, false},
		{"CURRENCY_ADDRESS", c.CurrencyAddress, false},
		{"BRIDGE_ADDRESS", c.BridgeAddress, true},
		{"TOKEN_ADDRESS", c.TokenAddress, true},
	}
	for _, a := range addresses {
		if a.value == "" && a.optional {
			continue
		}
		if !common.IsHexAddress(a.value) {
			return newError(a.key, "not a hex address: %q", a.value)
		}
	}

	if c.PaymentTimeoutSecond == 0 {
		return newError("PAYMENT_TIMEOUT_SECOND", "must be positive")
	}
	if c.ApprovalSecond > c.PaymentTimeoutSecond {
		return newError("APPROVAL_SECOND", "must not exceed PAYMENT_TIMEOUT_SECOND")
	}
	if c.TemporaryAccountTTLSecond == 0 {
		return newError("TEMPORARY_ACCOUNT_TTL_SECOND", "must be positive")
	}
	if c.TaskMaxAttempts == 0 {
		return newError("TASK_MAX_ATTEMPTS", "must be positive")
	}
	if c.RateLimit < 0 {
		return newError("RATE_LIMIT", "must not be negative")
	}
	if c.ReconcilerExpression == "" {
		return newError("RECONCILER_EXPRESSION", "missing value")
	}
	if c.WatcherExpression == "" {
		return newError("WATCHER_EXPRESSION", "missing value")
	}
	return nil
}

// IsConfigError reports whether err comes from a bad configuration value.
func IsConfigError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func (c Config) AppConfig() application.Config {
	return application.Config{
		PaymentTimeout:      seconds(c.PaymentTimeoutSecond),
		ApprovalTimeout:     seconds(c.ApprovalSecond),
		ForcedCloseTimeout:  seconds(c.ForcedCloseSecond),
		TemporaryAccountTTL: seconds(c.TemporaryAccountTTLSecond),
		TaskMaxAttempts:     int(c.TaskMaxAttempts),
		StaleNonceWindow:    int(c.StaleNonceWindow),
		AllowedShopIDPrefix: c.AllowedShopIDPrefix,
	}
}

func (c Config) ChainConfig() chain.Config {
	return chain.Config{
		RPCURL:          c.ChainRPCURL,
		ChainID:         c.ChainID,
		PrivateKey:      c.PrivateKey,
		LedgerAddress:   common.HexToAddress(c.LedgerAddress),
		ShopAddress:     common.HexToAddress(c.ShopAddress),
		ConsumerAddress: common.HexToAddress(c.ConsumerAddress),
		CurrencyAddress: common.HexToAddress(c.CurrencyAddress),
		BridgeAddress:   common.HexToAddress(c.BridgeAddress),
		TokenAddress:    common.HexToAddress(c.TokenAddress),
	}
}

func (c Config) CallbackConfig() callback.Config {
	return callback.Config{
		Endpoint:  c.CallbackEndpoint,
		AccessKey: c.CallbackAccessKey,
	}
}

func (c Config) WebConfig() web.Config {
	return web.Config{
		Port:          c.HTTPPort,
		AccessKey:     c.AccessKey,
		RateLimit:     c.RateLimit,
		SentryEnabled: c.SentryDSN != "",
	}
}

// DbDir is where the selected backend keeps its files.
func (c Config) DbDir() string {
	return filepath.Join(c.Datadir, "db")
}

func (c Config) LogFilePath() string {
	return cleanAndExpandPath(c.LogFile)
}

func seconds(n uint32) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) initDatadir() error {
	if c.Datadir == appName {
		c.Datadir = appDatadir(appName, false)
	} else {
		c.Datadir = cleanAndExpandPath(c.Datadir)
	}
	return makeDirectoryIfNotExists(c.DbDir())
}

func setDefaultConfig(v *viper.Viper) error {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("mapstructure")
		def := f.Tag.Get("envDefault")
		if def != "" {
			v.SetDefault(key, def)
		}
		err := v.BindEnv(key)
		if err != nil {
			return fmt.Errorf("error binding env variable for key %s: %w", key, err)
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// appDatadir returns an operating system specific directory to be used for
// storing application data.
func appDatadir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	var homeDir string
	usr, err := user.Current()
	if err == nil {
		homeDir = usr.HomeDir
	}
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}
	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library", "Application Support", appNameUpper)
		}
	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	return "."
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
