package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/btc-vaults/vaultcore/pkg/keys"
)

// Tag is a single wire tag: its first element names the tag ("p", "e",
// "policy", "proposal", "t", ...), the rest are its values.
type Tag []string

// Event is the signed, addressable unit the relay carries: every policy
// announcement, proposal, approval and share offer in the protocol is one of
// these, keyed by kind (kinds.go) and, for the parameterized-replaceable
// range this module uses exclusively, a "d" tag identifying the addressed
// object.
type Event struct {
	ID        [32]byte `json:"id"`
	Author    [32]byte `json:"pubkey"`
	CreatedAt int64    `json:"created_at"`
	Kind      Kind     `json:"kind"`
	Tags      []Tag    `json:"tags"`
	Content   string   `json:"content"`
	Sig       [64]byte `json:"sig"`
}

// serialForID is the exact NIP-01 array form the event id is a hash of:
// [0, pubkey, created_at, kind, tags, content], all fields lowercase hex or
// raw JSON scalars.
type serialForID struct {
	tag       int
	pubkey    string
	createdAt int64
	kind      int
	tags      []Tag
	content   string
}

func (s serialForID) MarshalJSON() ([]byte, error) {
	arr := []interface{}{s.tag, s.pubkey, s.createdAt, s.kind, s.tags, s.content}
	return json.Marshal(arr)
}

func computeID(author [32]byte, createdAt int64, kind Kind, tags []Tag, content string) [32]byte {
	if tags == nil {
		tags = []Tag{}
	}
	b, _ := json.Marshal(serialForID{
		tag:       0,
		pubkey:    hex.EncodeToString(author[:]),
		createdAt: createdAt,
		kind:      int(kind),
		tags:      tags,
		content:   content,
	})
	return sha256.Sum256(b)
}

// New builds and signs an event with the given identity, kind, tags and
// content, stamping CreatedAt with now. Sign is BIP-340 schnorr over the
// computed id, matching NIP-01.
func New(id *keys.Identity, kind Kind, tags []Tag, content string, now int64) (*Event, error) {
	author := id.XOnlyPubKey()
	evID := computeID(author, now, kind, tags, content)
	sig, err := id.Sign(evID)
	if err != nil {
		return nil, err
	}
	ev := &Event{
		ID:        evID,
		Author:    author,
		CreatedAt: now,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	copy(ev.Sig[:], sig.Serialize())
	return ev, nil
}

// Verify recomputes the id and checks the schnorr signature against Author.
// An event failing Verify must be discarded by the caller, never persisted.
func (e *Event) Verify() error {
	want := computeID(e.Author, e.CreatedAt, e.Kind, e.Tags, e.Content)
	if want != e.ID {
		return ErrIDMismatch
	}
	pub, err := schnorr.ParsePubKey(e.Author[:])
	if err != nil {
		return err
	}
	sig, err := schnorr.ParseSignature(e.Sig[:])
	if err != nil {
		return err
	}
	if !sig.Verify(e.ID[:], pub) {
		return ErrInvalidSignature
	}
	return nil
}

// AuthorHex returns the event author's x-only public key as lowercase hex.
func (e *Event) AuthorHex() string { return hex.EncodeToString(e.Author[:]) }

// IDHex returns the event id as lowercase hex.
func (e *Event) IDHex() string { return hex.EncodeToString(e.ID[:]) }

// FirstTagValue returns the first value of the first tag named key, or ""
// if no such tag is present.
func (e *Event) FirstTagValue(key string) string {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == key {
			return t[1]
		}
	}
	return ""
}

// TagValues returns every value carried under tags named key, in order.
func (e *Event) TagValues(key string) []string {
	var out []string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == key {
			out = append(out, t[1])
		}
	}
	return out
}
