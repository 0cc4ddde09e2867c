package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/btc-vaults/vaultcore/pkg/keys"
)

// aesCBCEncrypt encrypts plaintext under key with a fresh random IV and
// PKCS7 padding, returning the NIP-04 wire form "<b64 ciphertext>?iv=<b64
// iv>" — the same construction NIP-04 direct messages and this protocol's
// shared-key envelopes both use.
func aesCBCEncrypt(key [32]byte, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// aesCBCDecrypt is aesCBCEncrypt's inverse.
func aesCBCDecrypt(key [32]byte, wire string) ([]byte, error) {
	parts := strings.SplitN(wire, "?iv=", 2)
	if len(parts) != 2 {
		return nil, ErrCiphertextInvalid
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrCiphertextInvalid
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrCiphertextInvalid
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextInvalid
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrCiphertextInvalid
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > len(data) {
		return nil, ErrCiphertextInvalid
	}
	return data[:len(data)-pad], nil
}

// directKey derives the NIP-04 shared AES key between sender and recipient:
// the raw ECDH x-coordinate, used unhashed.
func directKey(sender *keys.Identity, recipient *btcec.PublicKey) [32]byte {
	return sender.ECDH(recipient)
}

// EncryptDirect encrypts content for a single recipient, NIP-04 style.
func EncryptDirect(sender *keys.Identity, recipient *btcec.PublicKey, content string) (string, error) {
	return aesCBCEncrypt(directKey(sender, recipient), []byte(content))
}

// DecryptDirect reverses EncryptDirect using the recipient's own identity
// and the sender's public key.
func DecryptDirect(recipient *keys.Identity, sender *btcec.PublicKey, wire string) (string, error) {
	pt, err := aesCBCDecrypt(directKey(recipient, sender), wire)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// EncryptShared encrypts content under a policy's 32-byte SharedKey, giving
// every participant holding that key the ability to decrypt without a
// per-recipient ECDH.
func EncryptShared(sharedKey [32]byte, content string) (string, error) {
	return aesCBCEncrypt(sharedKey, []byte(content))
}

// DecryptShared reverses EncryptShared.
func DecryptShared(sharedKey [32]byte, wire string) (string, error) {
	pt, err := aesCBCDecrypt(sharedKey, wire)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
