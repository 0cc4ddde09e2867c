package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/btc-vaults/vaultcore/internal/config"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
	dbbadger "github.com/btc-vaults/vaultcore/internal/infrastructure/storage/db/badger"
	"github.com/btc-vaults/vaultcore/internal/infrastructure/storage/db/inmemory"
	postgresdb "github.com/btc-vaults/vaultcore/internal/infrastructure/storage/db/postgres"
	"github.com/btc-vaults/vaultcore/internal/infrastructure/relay/nostr"
	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/profiler"
)

// newRelayClient returns an unconnected relay client; callers invoke
// Connect with the relay URL set they care about before publishing or
// subscribing.
func newRelayClient() ports.RelayClient {
	return nostr.NewClient()
}

// keychainPath is where the current network's encrypted keychain lives on
// disk, one file per datadir/network pair.
func keychainPath() string {
	return filepath.Join(config.GetDatadir(), "keychain.json")
}

// newRepoManager opens the repository backend named by the DATABASE_TYPE
// config key.
func newRepoManager() (ports.RepoManager, error) {
	switch dbType := config.GetString(config.DatabaseTypeKey); dbType {
	case "badger":
		return dbbadger.NewRepoManager(filepath.Join(config.GetDatadir(), config.DbLocation))
	case "inmemory":
		return inmemory.NewRepoManager(), nil
	case "postgres":
		return postgresdb.NewRepoManager(postgresdb.DbConfig{
			DbUser:             config.GetString(config.DbUserKey),
			DbPassword:         config.GetString(config.DbPassKey),
			DbHost:             config.GetString(config.DbHostKey),
			DbPort:             config.GetInt(config.DbPortKey),
			DbName:             config.GetString(config.DbNameKey),
			MigrationSourceURL: config.GetString(config.DbMigrationPath),
		})
	default:
		return nil, fmt.Errorf("vault: unsupported database type %q", dbType)
	}
}

// newProfiler returns a pprof profiler service for the sync daemon, or nil
// if NO_PROFILER disables it.
func newProfiler() (*profiler.ProfilerService, error) {
	if config.GetBool(config.NoProfilerKey) {
		return nil, nil
	}
	return profiler.NewService(profiler.ServiceOpts{
		Port:          config.GetInt(config.ProfilerPortKey),
		StatsInterval: time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second,
		Datadir:       filepath.Join(config.GetDatadir(), config.ProfilerLocation),
	})
}

// loadKeychain reads the datadir's persisted keychain. Callers that haven't
// run `vault keychain generate`/`restore` yet get a clear error instead of a
// missing-file stack trace.
func loadKeychain() (*keys.Keychain, error) {
	kc, err := keys.LoadKeychainFromFile(keychainPath())
	if err != nil {
		return nil, fmt.Errorf("vault: no keychain found at %s, run `vault keychain generate` first: %w", keychainPath(), err)
	}
	return kc, nil
}

// unlockIdentity loads and unlocks the datadir's keychain with password,
// returning the derived Identity every other command signs and decrypts
// with.
func unlockIdentity(password string) (*keys.Identity, error) {
	kc, err := loadKeychain()
	if err != nil {
		return nil, err
	}
	return kc.Unlock(password)
}
