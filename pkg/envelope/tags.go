package envelope

import "encoding/hex"

// Tag constructors for this protocol's fixed tag vocabulary.
// "d" addresses the parameterized-replaceable object (policy id, proposal
// id, ...); "p" and "e" follow NIP-01's participant/reference convention;
// "policy", "proposal" and "t" are this protocol's own indices.

func DTag(value string) Tag { return Tag{"d", value} }

func PTag(xonly [32]byte) Tag { return Tag{"p", hex.EncodeToString(xonly[:])} }

func ETag(id [32]byte) Tag { return Tag{"e", hex.EncodeToString(id[:])} }

func PolicyTag(policyID string) Tag { return Tag{"policy", policyID} }

func ProposalTag(proposalID string) Tag { return Tag{"proposal", proposalID} }

func CategoryTag(category string) Tag { return Tag{"t", category} }

// Filter selects a subset of events, mirroring a relay subscription filter
// (NIP-01 REQ). A zero-value field means "unconstrained".
type Filter struct {
	IDs       [][32]byte
	Authors   [][32]byte
	Kinds     []Kind
	PolicyIDs []string
	Proposals []string
	Since     int64
	Until     int64
	Limit     int
}

// Match reports whether ev satisfies every constraint set on f.
func (f Filter) Match(ev *Event) bool {
	if len(f.IDs) > 0 && !containsHash(f.IDs, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsHash(f.Authors, ev.Author) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	if f.Since != 0 && ev.CreatedAt < f.Since {
		return false
	}
	if f.Until != 0 && ev.CreatedAt > f.Until {
		return false
	}
	if len(f.PolicyIDs) > 0 && !containsStr(f.PolicyIDs, ev.FirstTagValue("policy")) {
		return false
	}
	if len(f.Proposals) > 0 && !containsStr(f.Proposals, ev.FirstTagValue("proposal")) {
		return false
	}
	return true
}

func containsHash(set [][32]byte, v [32]byte) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsKind(set []Kind, v Kind) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
