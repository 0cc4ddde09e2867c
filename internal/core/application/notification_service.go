package application

import (
	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
)

// NotificationService exposes the projection's change-notification channel
// to callers (the CLI's `sync run` command) without exposing the
// repository interfaces those notifications originate from.
type NotificationService struct {
	repoManager ports.RepoManager
}

func NewNotificationService(repoManager ports.RepoManager) *NotificationService {
	return &NotificationService{repoManager}
}

// Listen returns the channel every PolicyAdded, ProposalCreated,
// ProposalUpdated, TxBroadcast, and other projection event is delivered on,
// at least once, for as long as the caller keeps draining it.
func (n *NotificationService) Listen() chan domain.Notification {
	return n.repoManager.PolicyRepository().GetNotificationChannel()
}
