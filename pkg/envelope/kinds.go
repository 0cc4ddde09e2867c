package envelope

// Kind is the wire event's typed kind, drawn from the fixed range
// 31000-31999, nostr's parameterized-replaceable application range.
type Kind int

const (
	KindPolicyAnnounce     Kind = 31000
	KindSharedKey          Kind = 31001
	KindProposal           Kind = 31002
	KindApproval           Kind = 31003
	KindCompletedProposal  Kind = 31004
	KindSigner             Kind = 31005
	KindSharedSignerOffer  Kind = 31006
	KindSharedSignerAccept Kind = 31007
	KindLabel              Kind = 31008
	KindKeyAgentProfile    Kind = 31009
	KindKeyAgentSigner     Kind = 31010
	KindVaultInvite        Kind = 31011
	KindVaultJoin          Kind = 31012
	KindProposalChat       Kind = 31013
)

// Encryption is the confidentiality mode an event kind is published under.
type Encryption int

const (
	// EncryptionNone: kind is published in the clear (key-agent discovery).
	EncryptionNone Encryption = iota
	// EncryptionDirect: NIP-04-style AES-256-CBC keyed by an ECDH shared
	// secret between sender and a single recipient.
	EncryptionDirect
	// EncryptionShared: identical AES-256-CBC construction keyed by the
	// policy's SharedKey, decryptable by every participant.
	EncryptionShared
)

var kindEncryption = map[Kind]Encryption{
	KindPolicyAnnounce:     EncryptionShared,
	KindSharedKey:          EncryptionDirect,
	KindProposal:           EncryptionShared,
	KindApproval:           EncryptionShared,
	KindCompletedProposal:  EncryptionShared,
	KindSigner:             EncryptionDirect,
	KindSharedSignerOffer:  EncryptionDirect,
	KindSharedSignerAccept: EncryptionDirect,
	KindLabel:              EncryptionShared,
	KindKeyAgentProfile:    EncryptionNone,
	KindKeyAgentSigner:     EncryptionNone,
	KindVaultInvite:        EncryptionDirect,
	KindVaultJoin:          EncryptionDirect,
	KindProposalChat:       EncryptionShared,
}

// EncryptionMode returns the confidentiality mode a kind is published under.
func (k Kind) EncryptionMode() Encryption {
	return kindEncryption[k]
}

func (k Kind) String() string {
	switch k {
	case KindPolicyAnnounce:
		return "PolicyAnnounce"
	case KindSharedKey:
		return "SharedKey"
	case KindProposal:
		return "Proposal"
	case KindApproval:
		return "Approval"
	case KindCompletedProposal:
		return "CompletedProposal"
	case KindSigner:
		return "Signer"
	case KindSharedSignerOffer:
		return "SharedSignerOffer"
	case KindSharedSignerAccept:
		return "SharedSignerAccept"
	case KindLabel:
		return "Label"
	case KindKeyAgentProfile:
		return "KeyAgentProfile"
	case KindKeyAgentSigner:
		return "KeyAgentSigner"
	case KindVaultInvite:
		return "VaultInvite"
	case KindVaultJoin:
		return "VaultJoin"
	case KindProposalChat:
		return "ProposalChat"
	default:
		return "Unknown"
	}
}
