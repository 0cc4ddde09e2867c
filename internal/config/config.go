package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"

	"github.com/btc-vaults/vaultcore/pkg/keys"
)

const (
	// DatadirKey is the key to customize the vault datadir.
	DatadirKey = "DATADIR"
	// DatabaseTypeKey is the key to customize the type of database to use.
	DatabaseTypeKey = "DATABASE_TYPE"
	// PortKey is the key to customize the service port. Nothing listens on
	// it; validation only checks that it differs from the profiler port.
	PortKey = "PORT"
	// ProfilerPortKey is the key to customize the port where the profiler will
	// be listening to.
	ProfilerPortKey = "PROFILER_PORT"
	// NetworkKey is the key to customize the bitcoin network tag.
	NetworkKey = "NETWORK"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// TLSExtraIPKey is the key to bind one or more public IPs to the TLS key pair.
	// Should be used only when enabling TLS.
	TLSExtraIPKey = "TLS_EXTRA_IP"
	// TLSExtraDomainKey is the key to bind one or more public dns domains to the
	// TLS key pair. Should be used only when enabling TLS.
	TLSExtraDomainKey = "TLS_EXTRA_DOMAIN"
	// NoTLSKey is the key to disable TLS encryption.
	NoTLSKey = "NO_TLS"
	// NoProfilerKey is the key to disable Prometheus profiling.
	NoProfilerKey = "NO_PROFILER"
	// StatsIntervalKey is the key to customize the interval for the profiler to
	// gather profiling stats.
	StatsIntervalKey = "STATS_INTERVAL"
	// RelayURLsKey is the key to customize the list of nostr relays the sync
	// service publishes to and subscribes from.
	RelayURLsKey = "RELAY_URLS"
	// ElectrumAddrKey is the key to set the address of the electrum server the
	// chain oracle connects to.
	ElectrumAddrKey = "ELECTRUM_ADDR"
	// ElectrumTLSKey is the key to enable TLS when dialing the electrum server.
	ElectrumTLSKey = "ELECTRUM_TLS"
	// ProposalExpiryKey is the key for a proposal lifetime in seconds. It is
	// given a default but nothing reads it; a proposal's expiry comes from its
	// policy's ProposalExpiry.
	ProposalExpiryKey = "PROPOSAL_EXPIRY_IN_SECONDS"
	// MaintenanceIntervalKey is the key to customize how often, in seconds,
	// the sync service polls the chain oracle and sweeps expired proposals.
	MaintenanceIntervalKey = "MAINTENANCE_INTERVAL_IN_SECONDS"
	// RootPathKey is the key to use a custom root derivation path for the
	// wallet, instead of the default m/84'/[0|1]'.
	RootPathKey = "ROOT_PATH"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"
	// TLSLocation is the folder inside the datadir containing TLS key and
	// certificate.
	TLSLocation = "tls"
	// ProfilerLocation is the folder inside the datadir containing profiler
	// stats files.
	ProfilerLocation = "stats"
	// DbUserKey is user used to connect to db
	DbUserKey = "DB_USER"
	// DbPassKey is password used to connect to db
	DbPassKey = "DB_PASS"
	// DbHostKey is host where db is installed
	DbHostKey = "DB_HOST"
	// DbPortKey is port on which db is listening
	DbPortKey = "DB_PORT"
	// DbNameKey is name of database
	DbNameKey = "DB_NAME"
	// DbMigrationPath is the path to migration files
	DbMigrationPath = "DB_MIGRATION_PATH"
)

var (
	vip *viper.Viper

	defaultDatadir             = btcutil.AppDataDir("vaultd", false)
	defaultDbType              = "badger"
	defaultPort                = 18000
	defaultLogLevel            = 4
	defaultNetwork             = string(keys.Bitcoin)
	defaultProfilerPort        = 18001
	defaultStatsInterval       = 600  // 10 minutes
	defaultProposalExpiry      = 86400 // 24 hours
	defaultMaintenanceInterval = 60   // 1 minute
	defaultElectrumAddr        = "electrum.blockstream.info:50002"

	supportedNetworks = map[string]keys.Network{
		string(keys.Bitcoin): keys.Bitcoin,
		string(keys.Testnet): keys.Testnet,
		string(keys.Signet):  keys.Signet,
		string(keys.Regtest): keys.Regtest,
	}
	rootPathByNetwork = map[string]string{
		string(keys.Bitcoin): "m/84'/0'",
		string(keys.Testnet): "m/84'/1'",
		string(keys.Signet):  "m/84'/1'",
		string(keys.Regtest): "m/84'/1'",
	}
	SupportedDbs = supportedType{
		"badger":   {},
		"inmemory": {},
		"postgres": {},
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("VAULT")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(DatabaseTypeKey, defaultDbType)
	vip.SetDefault(PortKey, defaultPort)
	vip.SetDefault(NetworkKey, defaultNetwork)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(NoTLSKey, false)
	vip.SetDefault(NoProfilerKey, false)
	vip.SetDefault(ProfilerPortKey, defaultProfilerPort)
	vip.SetDefault(StatsIntervalKey, defaultStatsInterval)
	vip.SetDefault(ElectrumAddrKey, defaultElectrumAddr)
	vip.SetDefault(ElectrumTLSKey, true)
	vip.SetDefault(ProposalExpiryKey, defaultProposalExpiry)
	vip.SetDefault(MaintenanceIntervalKey, defaultMaintenanceInterval)
	vip.SetDefault(DbUserKey, "root")
	vip.SetDefault(DbPassKey, "secret")
	vip.SetDefault(DbHostKey, "127.0.0.1")
	vip.SetDefault(DbPortKey, 5432)
	vip.SetDefault(DbNameKey, "vaultcore-db-pg")
	vip.SetDefault(DbMigrationPath, "file://internal/infrastructure/storage/db/postgres/migration")

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	net := GetString(NetworkKey)
	if len(net) == 0 {
		return fmt.Errorf("network must not be null")
	}
	if _, ok := supportedNetworks[net]; !ok {
		nets := make([]string, 0, len(supportedNetworks))
		for net := range supportedNetworks {
			nets = append(nets, net)
		}
		return fmt.Errorf("unknown network, must be one of: %v", nets)
	}

	dbType := GetString(DatabaseTypeKey)
	if _, ok := SupportedDbs[dbType]; !ok {
		return fmt.Errorf("unsupported database type, must be one of %s", SupportedDbs)
	}

	if len(GetStringSlice(RelayURLsKey)) == 0 {
		// no default relay list: an empty set just means sync starts disconnected.
	}

	port := GetInt(PortKey)
	noProfiler := GetBool(NoProfilerKey)
	if !noProfiler {
		profilerPort := GetInt(ProfilerPortKey)
		if port == profilerPort {
			return fmt.Errorf("port and profiler port must not be equal")
		}
	}

	return nil
}

func GetDatadir() string {
	return filepath.Join(GetString(DatadirKey), GetString(NetworkKey))
}

func GetNetwork() keys.Network {
	return supportedNetworks[GetString(NetworkKey)]
}

func GetRootPath() string {
	rootPath := GetString(RootPathKey)
	if rootPath != "" {
		return rootPath
	}
	return rootPathByNetwork[GetString(NetworkKey)]
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func Unset(key string) {
	vip.Set(key, nil)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	noProfiler := GetBool(NoProfilerKey)
	if !noProfiler {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}

	noTls := GetBool(NoTLSKey)
	if noTls {
		return nil
	}
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, TLSLocation)); err != nil {
		return err
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}
