package himkosh

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "himkosh.key")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestGenerateChecksum(t *testing.T) {
	t.Run("is 32 lowercase hex characters", func(t *testing.T) {
		sum := GenerateChecksum("DeptID=TSM|Amount1=6000")
		assert.Len(t, sum, 32)
		assert.Equal(t, strings.ToLower(sum), sum)
		assert.Regexp(t, "^[0-9a-f]{32}$", sum)
	})

	t.Run("round trips through verification", func(t *testing.T) {
		core := "DeptID=TSM|DeptRefNo=X|TotalAmount=1|AppRefNo=Y"
		assert.NoError(t, VerifyChecksum(core, GenerateChecksum(core)))
	})

	t.Run("verification is case insensitive", func(t *testing.T) {
		core := "DeptID=TSM|AppRefNo=Y"
		assert.NoError(t, VerifyChecksum(core, strings.ToUpper(GenerateChecksum(core))))
	})

	t.Run("detects any single character change", func(t *testing.T) {
		core := "DeptID=TSM|TotalAmount=6000|AppRefNo=HST123"
		sum := GenerateChecksum(core)
		for i := range core {
			mutated := core[:i] + string(core[i]^1) + core[i+1:]
			assert.ErrorIs(t, VerifyChecksum(mutated, sum), ErrChecksumMismatch,
				"flip at position %d went undetected", i)
		}
	})

	t.Run("rejects an empty presented checksum", func(t *testing.T) {
		assert.ErrorIs(t, VerifyChecksum("anything", ""), ErrChecksumMismatch)
	})
}

func TestEngineEncryptDecrypt(t *testing.T) {
	key16 := []byte("0123456789abcdef")

	t.Run("round trips ascii payloads", func(t *testing.T) {
		engine := NewEngine(writeKeyFile(t, key16), IVModeKey)

		plaintext := "DeptID=TSM|TotalAmount=6000|checksum=deadbeef"
		enc, err := engine.Encrypt(plaintext)
		require.NoError(t, err)

		_, err = base64.StdEncoding.DecodeString(enc)
		require.NoError(t, err, "ciphertext must be standard base64")
		assert.NotContains(t, enc, "\n")

		dec, err := engine.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plaintext, dec)
	})

	t.Run("round trips windows-1252 payloads", func(t *testing.T) {
		engine := NewEngine(writeKeyFile(t, key16), IVModeKey)

		plaintext := "TenderBy=Münch|Amount1=1"
		enc, err := engine.Encrypt(plaintext)
		require.NoError(t, err)
		dec, err := engine.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plaintext, dec)
	})

	t.Run("key mode reuses key bytes as iv for a 32 byte file", func(t *testing.T) {
		key32 := []byte("0123456789abcdefFEDCBA9876543210")

		keyMode := NewEngine(writeKeyFile(t, key32), IVModeKey)
		pure16 := NewEngine(writeKeyFile(t, key16), IVModeKey)

		encA, err := keyMode.Encrypt("payload")
		require.NoError(t, err)
		encB, err := pure16.Encrypt("payload")
		require.NoError(t, err)
		assert.Equal(t, encB, encA, "iv must come from the key half, ignoring the second 16 bytes")
	})

	t.Run("split mode uses the second half as iv", func(t *testing.T) {
		key32 := []byte("0123456789abcdefFEDCBA9876543210")

		keyMode := NewEngine(writeKeyFile(t, key32), IVModeKey)
		splitMode := NewEngine(writeKeyFile(t, key32), IVModeSplit)

		encA, err := keyMode.Encrypt("payload")
		require.NoError(t, err)
		encB, err := splitMode.Encrypt("payload")
		require.NoError(t, err)
		assert.NotEqual(t, encA, encB)

		// Both still decrypt under their own engine.
		dec, err := splitMode.Decrypt(encB)
		require.NoError(t, err)
		assert.Equal(t, "payload", dec)
	})

	t.Run("missing key file is a configuration error", func(t *testing.T) {
		engine := NewEngine(filepath.Join(t.TempDir(), "nope.key"), IVModeKey)
		_, err := engine.Encrypt("x")
		assert.ErrorIs(t, err, ErrKeyNotConfigured)
		assert.False(t, engine.Configured())
	})

	t.Run("empty key path is a configuration error", func(t *testing.T) {
		engine := NewEngine("", IVModeKey)
		_, err := engine.Decrypt("x")
		assert.ErrorIs(t, err, ErrKeyNotConfigured)
	})

	t.Run("wrong key file length is a configuration error", func(t *testing.T) {
		engine := NewEngine(writeKeyFile(t, []byte("short")), IVModeKey)
		_, err := engine.Encrypt("x")
		assert.ErrorIs(t, err, ErrKeyNotConfigured)
	})

	t.Run("a trailing newline in the key file is tolerated", func(t *testing.T) {
		engine := NewEngine(writeKeyFile(t, append(append([]byte{}, key16...), '\n')), IVModeKey)
		assert.True(t, engine.Configured())
	})

	t.Run("key becomes loadable after provisioning", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "late.key")
		engine := NewEngine(path, IVModeKey)
		_, err := engine.Encrypt("x")
		require.ErrorIs(t, err, ErrKeyNotConfigured)

		require.NoError(t, os.WriteFile(path, key16, 0o600))
		_, err = engine.Encrypt("x")
		assert.NoError(t, err)
	})

	t.Run("garbage ciphertext is a crypto error, not a config error", func(t *testing.T) {
		engine := NewEngine(writeKeyFile(t, key16), IVModeKey)

		_, err := engine.Decrypt("not base64 at all %%%")
		var cryptoErr *CryptoError
		assert.ErrorAs(t, err, &cryptoErr)
		assert.NotErrorIs(t, err, ErrKeyNotConfigured)

		// Valid base64 but not block aligned.
		_, err = engine.Decrypt(base64.StdEncoding.EncodeToString([]byte("abc")))
		assert.ErrorAs(t, err, &cryptoErr)
	})

	t.Run("wrong key fails padding validation", func(t *testing.T) {
		a := NewEngine(writeKeyFile(t, key16), IVModeKey)
		b := NewEngine(writeKeyFile(t, []byte("fedcba9876543210")), IVModeKey)

		enc, err := a.Encrypt("DeptID=TSM|TotalAmount=6000")
		require.NoError(t, err)

		if dec, err := b.Decrypt(enc); err == nil {
			// A wrong key can, rarely, produce valid-looking padding; the
			// plaintext still must not survive.
			assert.NotEqual(t, "DeptID=TSM|TotalAmount=6000", dec)
		}
	})
}
