package ports

import (
	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type NotificationHandler func(n domain.Notification)

// RepoManager is the abstraction for any kind of service intended to manage
// domain repository implementations of the same concrete storage backend
// (badger, in-memory, or postgres — internal/infrastructure/storage/db/*).
type RepoManager interface {
	PolicyRepository() domain.PolicyRepository
	ProposalRepository() domain.ProposalRepository
	SignerRepository() domain.SignerRepository
	LabelRepository() domain.LabelRepository
	EventRepository() domain.EventRepository

	// RegisterHandlerForNotification registers a handler executed whenever
	// the given notification type occurs.
	RegisterHandlerForNotification(t domain.NotificationType, handler NotificationHandler)

	// Reset brings all repos to their initial state by deleting persisted
	// data.
	Reset()
	// Close closes the connection with every concrete repository.
	Close()
}
