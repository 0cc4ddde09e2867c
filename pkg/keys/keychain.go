package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/btc-vaults/vaultcore/pkg/wallet/mnemonic"
)

// scrypt cost parameters for keychain password stretching. N=1<<15 keeps
// unlock under a second on commodity hardware while still costing an
// attacker real work per password guess.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Keychain is the encrypted-at-rest representation of an Identity's mnemonic,
// exposing the same lock/unlock lifecycle as a wallet
// (IsLocked/Unlock/ChangePassword).
type Keychain struct {
	EncryptedMnemonic []byte
	Salt              []byte
	Network           Network

	unlocked []string
}

var (
	ErrKeychainLocked         = fmt.Errorf("keychain is locked")
	ErrKeychainWrongPassword  = fmt.Errorf("wrong keychain password")
	ErrKeychainAlreadyUnlocked = fmt.Errorf("keychain is already unlocked")
)

// NewKeychain encrypts mnemonic words under password and returns a locked
// Keychain.
func NewKeychain(words []string, password string, network Network) (*Keychain, error) {
	if err := mnemonic.Validate(words); err != nil {
		return nil, err
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key, err := deriveAESKey(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext := []byte(strings.Join(words, " "))
	ciphertext, err := aesCBCEncryptPadded(key, plaintext)
	if err != nil {
		return nil, err
	}
	return &Keychain{
		EncryptedMnemonic: ciphertext,
		Salt:              salt,
		Network:           network,
	}, nil
}

// IsLocked reports whether the mnemonic has been decrypted into memory.
func (k *Keychain) IsLocked() bool {
	return len(k.unlocked) == 0
}

// Unlock decrypts the mnemonic with password, returning ErrKeychainWrongPassword
// on failure. On success the derived Identity is returned.
func (k *Keychain) Unlock(password string) (*Identity, error) {
	key, err := deriveAESKey(password, k.Salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aesCBCDecryptPadded(key, k.EncryptedMnemonic)
	if err != nil {
		return nil, ErrKeychainWrongPassword
	}
	words := strings.Split(string(plaintext), " ")
	if err := mnemonic.Validate(words); err != nil {
		return nil, ErrKeychainWrongPassword
	}
	k.unlocked = words
	return NewIdentity(words, "", k.Network)
}

// Lock discards the decrypted mnemonic from memory.
func (k *Keychain) Lock() {
	k.unlocked = nil
}

// ChangePassword re-encrypts the mnemonic under a new password. The
// keychain must be unlocked first.
func (k *Keychain) ChangePassword(newPassword string) error {
	if k.IsLocked() {
		return ErrKeychainLocked
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key, err := deriveAESKey(newPassword, salt)
	if err != nil {
		return err
	}
	ciphertext, err := aesCBCEncryptPadded(key, []byte(strings.Join(k.unlocked, " ")))
	if err != nil {
		return err
	}
	k.EncryptedMnemonic = ciphertext
	k.Salt = salt
	return nil
}

// keychainFile is the on-disk JSON encoding of a Keychain, hex-wrapping its
// binary fields so the file stays a plain readable JSON document.
type keychainFile struct {
	EncryptedMnemonic string `json:"encrypted_mnemonic"`
	Salt              string `json:"salt"`
	Network           string `json:"network"`
}

// SaveToFile writes k to path as JSON, creating or truncating it with
// owner-only permissions since it holds encrypted seed material.
func (k *Keychain) SaveToFile(path string) error {
	raw, err := json.Marshal(keychainFile{
		EncryptedMnemonic: hex.EncodeToString(k.EncryptedMnemonic),
		Salt:              hex.EncodeToString(k.Salt),
		Network:           string(k.Network),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// LoadKeychainFromFile reads back a Keychain persisted with SaveToFile. The
// returned Keychain is locked; call Unlock with its password to use it.
func LoadKeychainFromFile(path string) (*Keychain, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f keychainFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	encMnemonic, err := hex.DecodeString(f.EncryptedMnemonic)
	if err != nil {
		return nil, fmt.Errorf("decoding encrypted mnemonic: %w", err)
	}
	salt, err := hex.DecodeString(f.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	return &Keychain{
		EncryptedMnemonic: encMnemonic,
		Salt:              salt,
		Network:           Network(f.Network),
	}, nil
}

func deriveAESKey(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, 32)
}

func aesCBCEncryptPadded(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	iv := make([]byte, block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	out := make([]byte, len(iv)+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(iv):], padded)
	return out, nil
}

func aesCBCDecryptPadded(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < block.BlockSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	iv, ct := ciphertext[:block.BlockSize()], ciphertext[block.BlockSize():]
	if len(ct) == 0 || len(ct)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext not block-aligned")
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	return data[:len(data)-padLen], nil
}
