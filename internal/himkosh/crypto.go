package himkosh

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/encoding/charmap"
)

// IVMode selects how the initialization vector is derived from the key
// file. The nominal treasury spec describes a 32-byte file whose second
// half is the IV, but the deployed remote system reuses the key bytes as
// the IV regardless of file layout. IVModeKey is therefore the effective
// contract for this counterparty and the default.
type IVMode string

const (
	IVModeKey   IVMode = "key"
	IVModeSplit IVMode = "split"
)

// Engine implements the checksum and cipher side of the treasury protocol:
// an MD5 content digest over the core field string, and AES-128-CBC with
// PKCS#7 padding over the full string. Key material comes from a local
// file, loaded lazily on first use and cached for the process lifetime.
//
// Plaintext is transcoded to Windows-1252 before encryption and back after
// decryption. The remote side is a .NET system using its single-byte
// default encoding; feeding it UTF-8 bytes corrupts anything outside
// 7-bit ASCII.
type Engine struct {
	keyPath string
	ivMode  IVMode

	mu  sync.Mutex
	key []byte
	iv  []byte
}

// NewEngine returns an engine reading key material from keyPath. The file
// is not touched until the first cipher operation, so a service can start
// before credentials are provisioned.
func NewEngine(keyPath string, ivMode IVMode) *Engine {
	if ivMode == "" {
		ivMode = IVModeKey
	}
	return &Engine{keyPath: keyPath, ivMode: ivMode}
}

// GenerateChecksum computes the integrity digest of the core field string:
// MD5 over its byte representation, rendered as 32 lowercase hex digits.
func GenerateChecksum(core string) string {
	sum := md5.Sum([]byte(core))
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum recomputes the digest over core and compares it against
// the presented value, case-insensitively. A mismatch means the message
// was tampered with or corrupted and must be rejected.
func VerifyChecksum(core, presented string) error {
	if presented == "" {
		return ErrChecksumMismatch
	}
	if !strings.EqualFold(GenerateChecksum(core), presented) {
		return ErrChecksumMismatch
	}
	return nil
}

// Encrypt transcodes plaintext to Windows-1252, encrypts it with
// AES-128-CBC and returns standard base64 with no line wrapping.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	key, iv, err := e.keyMaterial()
	if err != nil {
		return "", err
	}

	data, err := charmap.Windows1252.NewEncoder().Bytes([]byte(plaintext))
	if err != nil {
		return "", &CryptoError{Op: "encode plaintext", Err: err}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", &CryptoError{Op: "init cipher", Err: err}
	}

	padded := pkcs7Pad(data, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt: base64 decode, AES-128-CBC decrypt, strip
// PKCS#7 padding, transcode Windows-1252 back to UTF-8.
func (e *Engine) Decrypt(encoded string) (string, error) {
	key, iv, err := e.keyMaterial()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &CryptoError{Op: "decode ciphertext", Err: err}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", &CryptoError{Op: "init cipher", Err: err}
	}

	if len(raw) == 0 || len(raw)%block.BlockSize() != 0 {
		return "", &CryptoError{Op: "decrypt", Err: fmt.Errorf("ciphertext length %d is not block aligned", len(raw))}
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, block.BlockSize())
	if err != nil {
		return "", &CryptoError{Op: "unpad", Err: err}
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(unpadded)
	if err != nil {
		return "", &CryptoError{Op: "decode plaintext", Err: err}
	}
	return string(decoded), nil
}

// Configured reports whether key material can be loaded. It is a
// diagnostic probe; the error taxonomy is the same as the cipher paths'.
func (e *Engine) Configured() bool {
	_, _, err := e.keyMaterial()
	return err == nil
}

// keyMaterial loads and caches the key file. Only a successful load is
// cached, so a service started before credentials were provisioned picks
// the key up once the file appears. The file never changes at runtime, so
// racing loaders converge on identical bytes.
func (e *Engine) keyMaterial() ([]byte, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.key != nil {
		return e.key, e.iv, nil
	}

	if e.keyPath == "" {
		return nil, nil, ErrKeyNotConfigured
	}
	raw, err := os.ReadFile(e.keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyNotConfigured, err)
	}
	raw = bytes.TrimRight(raw, "\r\n")

	switch len(raw) {
	case 16:
		e.key = raw
		e.iv = raw
	case 32:
		e.key = raw[:16]
		if e.ivMode == IVModeSplit {
			e.iv = raw[16:]
		} else {
			e.iv = raw[:16]
		}
	default:
		return nil, nil, fmt.Errorf("%w: key file must be 16 or 32 bytes, got %d", ErrKeyNotConfigured, len(raw))
	}
	return e.key, e.iv, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
