package envelope

import "encoding/json"

// requiredFields lists the top-level JSON keys each kind's decrypted content
// must carry. Validation here is structural only — it exists to quarantine
// malformed or hostile events before they reach domain decoding, not to
// replace the domain layer's own parsing.
var requiredFields = map[Kind][]string{
	KindPolicyAnnounce:     {"descriptor", "network", "signers"},
	KindSharedKey:          {"policy_id", "key"},
	KindProposal:           {"policy_id", "psbt", "destinations"},
	KindApproval:           {"proposal_id", "psbt"},
	KindCompletedProposal:  {"proposal_id", "txid", "raw_tx"},
	KindSigner:             {"name", "xpub"},
	KindSharedSignerOffer:  {"policy_id", "key_agent"},
	KindSharedSignerAccept: {"policy_id", "signer"},
	KindLabel:              {"target", "text"},
	KindKeyAgentProfile:    {"name"},
	KindKeyAgentSigner:     {"device_type", "fee_sats"},
	KindVaultInvite:        {"policy_id", "invitee"},
	KindVaultJoin:          {"policy_id"},
	KindProposalChat:       {"proposal_id", "text"},
}

// ValidateSchema decodes content as JSON and checks it against the required
// field set for kind. A failure here means "quarantine this event", not
// "reject the connection" — callers should log and skip, never abort a sync.
func ValidateSchema(kind Kind, content string) error {
	fields, ok := requiredFields[kind]
	if !ok {
		return ErrUnknownKind
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return ErrSchemaInvalid
	}
	for _, f := range fields {
		if _, present := payload[f]; !present {
			return ErrSchemaInvalid
		}
	}
	return nil
}
