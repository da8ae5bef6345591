package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Key derivation parameters
	pbkdfIterations = 100000
	saltLength      = 32
	keyLength       = 32

	tokenIssuer = "voting_registry"
)

// KeyPair represents a cryptographic key pair
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
	Algorithm  string
	Created    time.Time
}

// Token represents an authentication token
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    jwt.Claims
}

// Encryptor handles encryption and decryption operations
type Encryptor struct {
	key    []byte
	cipher cipher.AEAD
}

// CryptoManager signs ballots, verifies participant signatures, and
// issues access tokens for the service boundary
type CryptoManager struct {
	activeKeyPair *KeyPair
	encryptor     *Encryptor
	jwtSecret     []byte
}

// NewCryptoManager creates a new cryptographic manager
func NewCryptoManager(keyPair *KeyPair, jwtSecret []byte) (*CryptoManager, error) {
	// The AEAD key is derived so secrets of any length work
	aeadKey := sha256.Sum256(jwtSecret)
	encryptor, err := newEncryptor(aeadKey[:])
	if err != nil {
		return nil, fmt.Errorf("initializing encryptor: %w", err)
	}

	return &CryptoManager{
		activeKeyPair: keyPair,
		encryptor:     encryptor,
		jwtSecret:     jwtSecret,
	}, nil
}

// GenerateKeyPair creates a new cryptographic key pair
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	return &KeyPair{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Algorithm:  "Ed25519",
		Created:    time.Now(),
	}, nil
}

// BallotDigest builds the canonical digest a ballot signature covers:
// the instance identifier, the participant identity, and the encoded
// ballot bytes. Binding the identifier prevents replay across instances.
func BallotDigest(identifier uint64, participant peer.ID, encodedBallot []byte) []byte {
	hasher := sha256.New()
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], identifier)
	hasher.Write(id[:])
	hasher.Write([]byte(participant))
	hasher.Write(encodedBallot)
	return hasher.Sum(nil)
}

// SignBallot signs a ballot with the active key pair
func (cm *CryptoManager) SignBallot(identifier uint64, participant peer.ID, encodedBallot []byte) ([]byte, error) {
	return cm.Sign(BallotDigest(identifier, participant, encodedBallot))
}

// VerifyBallot checks a ballot signature against a participant's public key
func (cm *CryptoManager) VerifyBallot(identifier uint64, participant peer.ID, encodedBallot, signature, publicKey []byte) bool {
	return cm.Verify(BallotDigest(identifier, participant, encodedBallot), signature, publicKey)
}

// Sign creates a digital signature for data
func (cm *CryptoManager) Sign(data []byte) ([]byte, error) {
	if len(cm.activeKeyPair.PrivateKey) == 0 {
		return nil, fmt.Errorf("private key not available")
	}

	return ed25519.Sign(cm.activeKeyPair.PrivateKey, data), nil
}

// Verify checks a digital signature
func (cm *CryptoManager) Verify(data, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, data, signature)
}

// Encrypt encrypts data using authenticated encryption
func (cm *CryptoManager) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, cm.encryptor.cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := cm.encryptor.cipher.Seal(nonce, nonce, data, nil)
	return ciphertext, nil
}

// Decrypt decrypts authenticated encrypted data
func (cm *CryptoManager) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := cm.encryptor.cipher.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	ciphertext = ciphertext[nonceSize:]

	plaintext, err := cm.encryptor.cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting data: %w", err)
	}

	return plaintext, nil
}

// GenerateToken creates a new JWT token
func (cm *CryptoManager) GenerateToken(subject string, duration time.Duration) (*Token, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(cm.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &Token{
		Value:     signedToken,
		IssuedAt:  now,
		ExpiresAt: now.Add(duration),
		Claims:    claims,
	}, nil
}

// ValidateToken validates a JWT token and returns its claims
func (cm *CryptoManager) ValidateToken(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cm.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ExportPublicKey exports the public key in base64
func (cm *CryptoManager) ExportPublicKey() string {
	return base64.StdEncoding.EncodeToString(cm.activeKeyPair.PublicKey)
}

// PublicKey returns the raw active public key
func (cm *CryptoManager) PublicKey() []byte {
	return cm.activeKeyPair.PublicKey
}

// RotateKeyPair generates and sets a new key pair
func (cm *CryptoManager) RotateKeyPair() error {
	newKeyPair, err := GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generating new key pair: %w", err)
	}

	cm.activeKeyPair = newKeyPair
	return nil
}

// SaveKeyPair writes the private key to a file, encrypted with a key
// derived from the passphrase
func SaveKeyPair(path string, keyPair *KeyPair, passphrase []byte) error {
	salt, err := GenerateSalt()
	if err != nil {
		return err
	}

	encryptor, err := newEncryptor(DeriveKey(passphrase, salt))
	if err != nil {
		return fmt.Errorf("initializing encryptor: %w", err)
	}

	nonce := make([]byte, encryptor.cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	sealed := encryptor.cipher.Seal(nonce, nonce, keyPair.PrivateKey, nil)
	contents := append(salt, sealed...)

	if err := os.WriteFile(path, contents, 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// LoadKeyPair reads and decrypts a key file written by SaveKeyPair
func LoadKeyPair(path string, passphrase []byte) (*KeyPair, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	if len(contents) < saltLength {
		return nil, fmt.Errorf("key file too short")
	}

	salt := contents[:saltLength]
	sealed := contents[saltLength:]

	encryptor, err := newEncryptor(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("initializing encryptor: %w", err)
	}

	nonceSize := encryptor.cipher.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("key file too short")
	}

	privateKey, err := encryptor.cipher.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting key file: %w", err)
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("unexpected private key size: %d", len(privateKey))
	}

	key := ed25519.PrivateKey(privateKey)
	return &KeyPair{
		PublicKey:  key.Public().(ed25519.PublicKey),
		PrivateKey: key,
		Algorithm:  "Ed25519",
		Created:    time.Now(),
	}, nil
}

// DeriveKey derives an encryption key from a password
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, pbkdfIterations, keyLength, sha256.New)
}

// GenerateSalt generates a random salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

func newEncryptor(key []byte) (*Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Encryptor{
		key:    key,
		cipher: gcm,
	}, nil
}
