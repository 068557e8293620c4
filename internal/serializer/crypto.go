package serializer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Scheme names the only encryption layout this package reads or writes.
	Scheme = "aes-gcm-pbkdf2-v1"

	// AppTag is appended to every salt. It is also the password of the
	// public composite record, so anyone holding a file can see its preview.
	// It is a provenance stamp, not a secret.
	AppTag = "rkgk-v1"

	iterations = 150_000
	keySize    = 32
	saltSize   = 16
	ivSize     = 12
)

func deriveKey(password string, salt []byte) []byte {
	tagged := make([]byte, 0, len(salt)+len(AppTag))
	tagged = append(append(tagged, salt...), AppTag...)
	return pbkdf2.Key([]byte(password), tagged, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

// seal encrypts plain under a fresh salt and IV.
func seal(random io.Reader, password string, plain []byte) (salt, iv, sealed []byte, err error) {
	salt = make([]byte, saltSize)
	iv = make([]byte, ivSize)
	if _, err = io.ReadFull(random, salt); err != nil {
		return nil, nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err = io.ReadFull(random, iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generate iv: %w", err)
	}
	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, nil, nil, err
	}
	return salt, iv, gcm.Seal(nil, iv, plain, nil), nil
}

func open(password string, salt, iv, sealed []byte) ([]byte, error) {
	if len(salt) != saltSize || len(iv) != ivSize {
		return nil, fmt.Errorf("%w: salt %d bytes, iv %d bytes", ErrDecrypt, len(salt), len(iv))
	}
	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		// wrong password and tampering are indistinguishable here
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plain, nil
}

var defaultRandom io.Reader = rand.Reader
