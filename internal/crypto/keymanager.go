// Package crypto provides wallet key storage, transaction signing and
// HMAC signing of outbound webhook payloads.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32

	// Key file versions. Version 2 records the account address and binds
	// it to the ciphertext as GCM additional data.
	keyFileV1 = 1
	keyFileV2 = 2
)

// keyFile is the on-disk format of an encrypted wallet key. Binary fields
// use standard base64.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig carries the information LoadKey needs to resolve the seller
// wallet key. A raw key wins over an encrypted file.
type KeyConfig struct {
	RawPrivateKey    string // hex, 0x prefix optional
	EncryptedKeyPath string // file written by EncryptKey
	KeyPassword      string
}

// EncryptKey encrypts a hex-encoded private key with a password using
// PBKDF2-HMAC-SHA256 and AES-256-GCM. The returned JSON names the account
// address so operators can tell key files apart without the password.
func EncryptKey(privateKeyHex string, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	keyBytes, err := decodeKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}
	addr, err := addressOf(keyBytes)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt, pbkdf2Iterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	return json.MarshalIndent(keyFile{
		Version:    keyFileV2,
		Address:    addr.Hex(),
		Iterations: pbkdf2Iterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, keyBytes, addr.Bytes())),
	}, "", "  ")
}

// DecryptKey decrypts a key file produced by EncryptKey and returns the
// hex-encoded private key without 0x prefix. Version 1 files, which carry
// no address, are still accepted.
func DecryptKey(encryptedJSON []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}
	kf, err := parseKeyFile(encryptedJSON)
	if err != nil {
		return "", err
	}

	salt, err := base64.StdEncoding.DecodeString(kf.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(kf.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(kf.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	iterations := kf.Iterations
	if iterations == 0 {
		iterations = pbkdf2Iterations
	}
	gcm, err := newGCM(password, salt, iterations)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}

	var aad []byte
	if kf.Version == keyFileV2 {
		aad = common.HexToAddress(kf.Address).Bytes()
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt wallet key (wrong password?): %w", err)
	}

	if kf.Version == keyFileV2 {
		addr, err := addressOf(plaintext)
		if err != nil {
			return "", err
		}
		if addr != common.HexToAddress(kf.Address) {
			return "", fmt.Errorf("crypto: key file address %s does not match key", kf.Address)
		}
	}
	return hex.EncodeToString(plaintext), nil
}

// KeyFileAddress returns the account recorded in a key file without
// decrypting it. Version 1 files have no address.
func KeyFileAddress(encryptedJSON []byte) (common.Address, error) {
	kf, err := parseKeyFile(encryptedJSON)
	if err != nil {
		return common.Address{}, err
	}
	if kf.Version < keyFileV2 || !common.IsHexAddress(kf.Address) {
		return common.Address{}, fmt.Errorf("crypto: key file version %d records no address", kf.Version)
	}
	return common.HexToAddress(kf.Address), nil
}

func parseKeyFile(data []byte) (keyFile, error) {
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return kf, fmt.Errorf("crypto: parsing encrypted key JSON: %w", err)
	}
	if kf.Version != keyFileV1 && kf.Version != keyFileV2 {
		return kf, fmt.Errorf("crypto: unsupported key file version %d", kf.Version)
	}
	return kf, nil
}

func addressOf(keyBytes []byte) (common.Address, error) {
	pk, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: invalid secp256k1 key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(pk.PublicKey), nil
}

// LoadKey resolves the wallet key. A raw key wins over an encrypted file;
// with neither configured LoadKey returns ErrNoKey.
func LoadKey(cfg KeyConfig) (string, error) {
	if cfg.RawPrivateKey != "" {
		keyBytes, err := decodeKeyHex(cfg.RawPrivateKey)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(keyBytes), nil
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}

	return "", ErrNoKey
}

// ErrNoKey is returned by LoadKey when no key source is configured.
var ErrNoKey = errors.New("crypto: no wallet key configured (set private_key or encrypted_key_path)")

func decodeKeyHex(s string) ([]byte, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("crypto: expected 32-byte key, got %d bytes", len(keyBytes))
	}
	return keyBytes, nil
}

// newGCM derives the AES-256 key from password and salt.
func newGCM(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	derivedKey := pbkdf2.Key([]byte(password), salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
