// Package bundle implements the hybrid RSA-OAEP + AES-256-CBC encrypted
// catalog bundle format described in spec.md §4.2/§6. No pack dependency
// implements this exact byte layout, so it is built directly on the stdlib
// crypto primitives rather than a general-purpose encryption library —
// interop with bundles produced by other implementations requires the
// layout to be followed byte-for-byte, which only the primitives guarantee.
package bundle

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
)

const (
	aesKeySize = 32 // AES-256
	ivSize     = 16
)

// FormatError indicates a bundle shorter than the header it claims, or a
// header whose length prefix overruns the file.
type FormatError struct{ Reason string }

func (e *FormatError) Error() string { return "bundle format: " + e.Reason }

// Encrypt reads inputJSONPath, validates it as JSON, re-serializes it to a
// canonical byte stream, and writes an encrypted bundle to outputPath per
// the layout in spec.md §4.2, using the RSA public key at publicKeyPEMPath.
func Encrypt(inputJSONPath, outputPath, publicKeyPEMPath string) error {
	raw, err := os.ReadFile(inputJSONPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputJSONPath, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("parsing %s as JSON: %w", inputJSONPath, err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("canonicalizing JSON: %w", err)
	}

	pub, err := loadPublicKey(publicKeyPEMPath)
	if err != nil {
		return err
	}

	aesKey := make([]byte, aesKeySize)
	if _, err := rand.Read(aesKey); err != nil {
		return fmt.Errorf("generating AES key: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return fmt.Errorf("generating IV: %w", err)
	}

	ciphertext, err := aesCBCEncrypt(aesKey, iv, canonical)
	if err != nil {
		return fmt.Errorf("encrypting payload: %w", err)
	}

	encKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, aesKey, nil)
	if err != nil {
		return fmt.Errorf("RSA-OAEP encrypting AES key: %w", err)
	}

	var out bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(encKey)))
	out.Write(lenBuf[:])
	out.Write(encKey)
	out.Write(iv)
	out.Write(ciphertext)

	if err := os.WriteFile(outputPath, out.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing bundle %s: %w", outputPath, err)
	}
	return nil
}

// Decrypt reads the bundle at inputPath, decrypts it with the RSA private
// key at privateKeyPEMPath, and writes pretty-printed JSON to outputPath.
func Decrypt(inputPath, outputPath, privateKeyPEMPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading bundle %s: %w", inputPath, err)
	}

	if len(data) < 4 {
		return &FormatError{Reason: "shorter than the 4-byte length prefix"}
	}
	k := binary.BigEndian.Uint32(data[0:4])
	if uint64(len(data)) < uint64(4)+uint64(k)+uint64(ivSize) {
		return &FormatError{Reason: "length prefix overruns bundle"}
	}

	encKey := data[4 : 4+k]
	iv := data[4+k : 4+k+ivSize]
	ciphertext := data[4+k+ivSize:]

	priv, err := loadPrivateKey(privateKeyPEMPath)
	if err != nil {
		return err
	}

	aesKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, encKey, nil)
	if err != nil {
		return fmt.Errorf("RSA-OAEP decrypting AES key: %w", err)
	}

	plaintext, err := aesCBCDecrypt(aesKey, iv, ciphertext)
	if err != nil {
		return fmt.Errorf("decrypting payload: %w", err)
	}

	var generic any
	if err := json.Unmarshal(plaintext, &generic); err != nil {
		return fmt.Errorf("decrypted payload is not valid JSON: %w", err)
	}
	pretty, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return fmt.Errorf("re-serializing decrypted payload: %w", err)
	}

	if err := os.WriteFile(outputPath, pretty, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}

func aesCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

func aesCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("invalid PKCS#7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading public key %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decoding PEM public key %s: no PEM block found", path)
	}
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaPub, ok := pub.(*rsa.PublicKey); ok {
			return rsaPub, nil
		}
		return nil, fmt.Errorf("public key %s is not an RSA key", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err == nil {
		if rsaPub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
			return rsaPub, nil
		}
	}
	return nil, fmt.Errorf("parsing public key %s: not PKIX or a certificate", path)
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decoding PEM private key %s: no PEM block found", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", path, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key %s is not an RSA key", path)
	}
	return rsaKey, nil
}
