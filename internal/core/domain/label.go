package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

var (
	ErrLabelMissingText = fmt.Errorf("missing label text")
	ErrLabelNotFound    = fmt.Errorf("label not found")
)

// LabelKind is the class of object a Label annotates.
type LabelKind string

const (
	LabelAddress LabelKind = "address"
	LabelUTXO    LabelKind = "utxo"
)

// Label is a policy-scoped human-readable annotation of an address or UTXO.
// Its id is a deterministic hash of its target so re-labeling the same
// object updates the same record instead of accumulating duplicates.
type Label struct {
	ID       string
	PolicyID string
	Kind     LabelKind
	Data     string
	Text     string
}

func NewLabel(policyID string, kind LabelKind, data, text string) (*Label, error) {
	if text == "" {
		return nil, ErrLabelMissingText
	}
	h := sha256.Sum256([]byte(policyID + string(kind) + data))
	return &Label{
		ID:       hex.EncodeToString(h[:]),
		PolicyID: policyID,
		Kind:     kind,
		Data:     data,
		Text:     text,
	}, nil
}
