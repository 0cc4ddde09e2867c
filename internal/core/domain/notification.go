package domain

const (
	PolicyAdded NotificationType = iota
	ProposalCreated
	ProposalUpdated
	ProposalExpiredNotif
	TxBroadcast
	BalanceChanged
	SignerShared
	SharedSignerRevokedNotif
	LabelUpdated
)

var notificationTypeString = map[NotificationType]string{
	PolicyAdded:              "PolicyAdded",
	ProposalCreated:          "ProposalCreated",
	ProposalUpdated:          "ProposalUpdated",
	ProposalExpiredNotif:     "ProposalExpired",
	TxBroadcast:              "TxBroadcast",
	BalanceChanged:           "BalanceChanged",
	SignerShared:             "SignerShared",
	SharedSignerRevokedNotif: "SharedSignerRevoked",
	LabelUpdated:             "LabelUpdated",
}

// NotificationType is the projection's monotonic change-notification tag,
// delivered at-least-once to every subscribed client.
type NotificationType int

func (t NotificationType) String() string {
	return notificationTypeString[t]
}

// Notification is one projection update. PolicyID and ProposalID are set
// only when relevant to the notification's type.
type Notification struct {
	Type       NotificationType
	PolicyID   string
	ProposalID string
	Detail     string
}
