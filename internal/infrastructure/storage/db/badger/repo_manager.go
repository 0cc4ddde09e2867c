// Package dbbadger implements ports.RepoManager against badgerhold-backed
// on-disk (or in-memory, for tests) stores, one per domain repository.
package dbbadger

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
)

type repoManager struct {
	policyRepo   *policyRepository
	proposalRepo *proposalRepository
	signerRepo   *signerRepository
	labelRepo    *labelRepository
	eventRepo    *eventRepository

	handlers *handlerMap
}

// NewRepoManager opens (or creates) badgerhold stores under baseDbDir, one
// subdirectory per domain repository, and returns a ready-to-use
// ports.RepoManager. baseDbDir empty runs every store fully in memory, for
// tests and ephemeral CLI sessions.
func NewRepoManager(baseDbDir string) (ports.RepoManager, error) {
	dirs := map[string]string{"policies": "", "proposals": "", "signers": "", "labels": "", "events": ""}
	if baseDbDir != "" {
		for name := range dirs {
			dirs[name] = filepath.Join(baseDbDir, name)
		}
	}

	policyDb, err := createDb(dirs["policies"])
	if err != nil {
		return nil, fmt.Errorf("opening policy db: %w", err)
	}
	proposalDb, err := createDb(dirs["proposals"])
	if err != nil {
		return nil, fmt.Errorf("opening proposal db: %w", err)
	}
	signerDb, err := createDb(dirs["signers"])
	if err != nil {
		return nil, fmt.Errorf("opening signer db: %w", err)
	}
	labelDb, err := createDb(dirs["labels"])
	if err != nil {
		return nil, fmt.Errorf("opening label db: %w", err)
	}
	eventDb, err := createDb(dirs["events"])
	if err != nil {
		return nil, fmt.Errorf("opening event db: %w", err)
	}

	rm := &repoManager{
		policyRepo:   newPolicyRepository(policyDb),
		proposalRepo: newProposalRepository(proposalDb),
		signerRepo:   newSignerRepository(signerDb),
		labelRepo:    newLabelRepository(labelDb),
		eventRepo:    newEventRepository(eventDb),
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

func (rm *repoManager) Reset() {
	rm.policyRepo.reset()
	rm.proposalRepo.reset()
	rm.signerRepo.reset()
	rm.labelRepo.reset()
	rm.eventRepo.reset()
}

func (rm *repoManager) Close() {
	rm.policyRepo.close()
	rm.proposalRepo.close()
	rm.signerRepo.close()
	rm.labelRepo.close()
	rm.eventRepo.close()
}

func createDb(dbDir string) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) == 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil
	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)
		go func() {
			for range ticker.C {
				if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					log.Warnf("vault store: garbage collector: %s", err)
				}
			}
		}()
	}
	return db, nil
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
