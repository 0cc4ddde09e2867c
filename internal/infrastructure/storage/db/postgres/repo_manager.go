// Package postgresdb implements ports.RepoManager against a postgres
// database, reachable with a real deployment's connection pooling and
// schema migrations rather than badger's embedded, single-process store.
package postgresdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
)

const (
	postgresDriver             = "pgx"
	insecureDataSourceTemplate = "postgresql://%s:%s@%s:%d/%s?sslmode=disable"
)

// DbConfig names the connection parameters and migration source for a
// postgres-backed RepoManager. MigrationSourceURL is a golang-migrate
// "file://" URL pointing at this package's migration/ directory.
type DbConfig struct {
	DbUser             string
	DbPassword         string
	DbHost             string
	DbPort             int
	DbName             string
	MigrationSourceURL string
}

type repoManager struct {
	pool *pgxpool.Pool

	policyRepo   *policyRepository
	proposalRepo *proposalRepository
	signerRepo   *signerRepository
	labelRepo    *labelRepository
	eventRepo    *eventRepository

	handlers *handlerMap
}

// NewRepoManager opens a pgx connection pool against dbConfig, runs every
// pending migration under dbConfig.MigrationSourceURL, and returns a
// ready-to-use ports.RepoManager.
func NewRepoManager(dbConfig DbConfig) (ports.RepoManager, error) {
	dataSource := insecureDataSourceStr(dbConfig)

	pool, err := pgxpool.Connect(context.Background(), dataSource)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	if err := migrateDb(dataSource, dbConfig.MigrationSourceURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrating: %w", err)
	}

	rm := &repoManager{
		pool:         pool,
		policyRepo:   newPolicyRepository(pool),
		proposalRepo: newProposalRepository(pool),
		signerRepo:   newSignerRepository(pool),
		labelRepo:    newLabelRepository(pool),
		eventRepo:    newEventRepository(pool),
		handlers:     newHandlerMap(),
	}
	go rm.dispatchNotifications()
	return rm, nil
}

func (rm *repoManager) PolicyRepository() domain.PolicyRepository     { return rm.policyRepo }
func (rm *repoManager) ProposalRepository() domain.ProposalRepository { return rm.proposalRepo }
func (rm *repoManager) SignerRepository() domain.SignerRepository     { return rm.signerRepo }
func (rm *repoManager) LabelRepository() domain.LabelRepository       { return rm.labelRepo }
func (rm *repoManager) EventRepository() domain.EventRepository       { return rm.eventRepo }

func (rm *repoManager) RegisterHandlerForNotification(
	t domain.NotificationType, handler ports.NotificationHandler,
) {
	rm.handlers.set(int(t), handler)
}

func (rm *repoManager) dispatchNotifications() {
	for n := range rm.policyRepo.notifications {
		if handlers, ok := rm.handlers.get(int(n.Type)); ok {
			for i := range handlers {
				handler := handlers[i]
				go handler.(ports.NotificationHandler)(n)
			}
		}
	}
}

// Reset truncates every table. Truncation order respects the schema's
// foreign keys.
func (rm *repoManager) Reset() {
	ctx := context.Background()
	tables := []string{
		"event_tags", "events", "relay_cursors",
		"labels", "key_agent_profiles", "shared_signer_offers", "signers",
		"frozen_utxos", "approvals", "proposals",
		"shared_keys", "policies",
	}
	for _, t := range tables {
		if _, err := rm.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", t)); err != nil {
			log.Warnf("postgres store: truncating %s: %s", t, err)
		}
	}
}

func (rm *repoManager) Close() {
	rm.pool.Close()
	close(rm.policyRepo.notifications)
}

func migrateDb(dataSource, migrationSourceURL string) error {
	pg := postgres.Postgres{}
	d, err := pg.Open(dataSource)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(migrationSourceURL, postgresDriver, d)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func insecureDataSourceStr(dbConfig DbConfig) string {
	return fmt.Sprintf(
		insecureDataSourceTemplate,
		dbConfig.DbUser, dbConfig.DbPassword, dbConfig.DbHost, dbConfig.DbPort, dbConfig.DbName,
	)
}

// logFn returns a namespaced debug logger matching every other layer's
// `<component>: <message>` convention.
func logFn(component string) func(format string, a ...interface{}) {
	return func(format string, a ...interface{}) {
		log.Debugf(fmt.Sprintf("%s: %s", component, format), a...)
	}
}

// handlerMap prevents races when registering or retrieving handlers for
// notifications.
type handlerMap struct {
	handlersByType map[int][]interface{}
	lock           sync.RWMutex
}

func newHandlerMap() *handlerMap {
	return &handlerMap{handlersByType: make(map[int][]interface{})}
}

func (m *handlerMap) set(key int, val interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handlersByType[key] = append(m.handlersByType[key], val)
}

func (m *handlerMap) get(key int) ([]interface{}, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	val, ok := m.handlersByType[key]
	return val, ok
}
