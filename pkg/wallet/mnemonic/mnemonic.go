package mnemonic

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidEntropySize is returned when a caller requests a mnemonic with
// an entropy size outside of {128, 256}.
var ErrInvalidEntropySize = errInvalidEntropySize{}

type errInvalidEntropySize struct{}

func (errInvalidEntropySize) Error() string {
	return "entropy size must be 128 or 256"
}

// ErrMnemonicInvalid is returned when a mnemonic fails its BIP-39 checksum.
var ErrMnemonicInvalid = errMnemonicInvalid{}

type errMnemonicInvalid struct{}

func (errMnemonicInvalid) Error() string {
	return "mnemonic is invalid or has a bad checksum"
}

type NewMnemonicArgs struct {
	EntropySize uint32
}

func (a NewMnemonicArgs) validate() error {
	if a.EntropySize > 0 {
		if a.EntropySize != 128 && a.EntropySize != 256 {
			return ErrInvalidEntropySize
		}
	}
	return nil
}

// NewMnemonic returns a new mnemonic as a list of words:
//   - EntropySize: 256 -> 24-words mnemonic.
//   - EntropySize: 128 -> 12-words mnemonic.
func NewMnemonic(args NewMnemonicArgs) ([]string, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	if args.EntropySize == 0 {
		args.EntropySize = 256
	}

	entropy, err := bip39.NewEntropy(int(args.EntropySize))
	if err != nil {
		return nil, err
	}
	words, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Split(words, " "), nil
}

// Validate checks the BIP-39 checksum of the given mnemonic words.
func Validate(words []string) error {
	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return ErrMnemonicInvalid
	}
	return nil
}

// ToSeed derives the 64-byte BIP-39 seed from the mnemonic and an optional
// passphrase. It fails with ErrMnemonicInvalid if the checksum doesn't
// match.
func ToSeed(words []string, passphrase string) ([]byte, error) {
	if err := Validate(words); err != nil {
		return nil, err
	}
	return bip39.NewSeed(strings.Join(words, " "), passphrase), nil
}
