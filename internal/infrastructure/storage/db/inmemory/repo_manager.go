package inmemory

import (
	"sync"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
)

// repoManager wires the five in-process, mutex-guarded stores behind
// ports.RepoManager. It exists for tests and single-process deployments that
// don't need badger's or postgres's durability.
type repoManager struct {
	policyRepo   *policyRepository
	proposalRepo *proposalRepository
	signerRepo   *signerRepository
	labelRepo    *labelRepository
	eventRepo    *eventRepository

	handlers *handlerMap
}

func NewRepoManager() ports.RepoManager {
	rm := &repoManager{
		policyRepo:   newPolicyRepository(),
		proposalRepo: newProposalRepository(),
		signerRepo:   newSignerRepository(),
		labelRepo:    newLabelRepository(),
		eventRepo:    newEventRepository(),
		handlers:     newHandlerMap(),
	}
	go rm.dispatchNotifications()
	return rm
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
