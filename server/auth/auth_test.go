package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/secureher/secureher/server/auth/key"
	"github.com/stretchr/testify/assert"
)

func testKeyPair(t *testing.T) *key.KeyPair {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.Nil(t, err)

	return &key.KeyPair{
		Kid:        "test-key-id",
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}
}

func TestEncodeDecodeJWT(t *testing.T) {
	keyPair := testKeyPair(t)

	token, err := EncodeJWT(SecureHerTokenClaims{
		FirstName: "Sarah",
		LastName:  "Connor",
		IsAdmin:   true,
		StandardClaims: jwt.StandardClaims{
			Subject:   "1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}, keyPair)
	assert.Nil(t, err)

	claims, err := DecodeJWT(token, keyPair)
	assert.Nil(t, err)
	assert.Equal(t, "Sarah", claims.FirstName)
	assert.Equal(t, "1", claims.Subject)
	assert.True(t, claims.IsAdmin)
}

func TestDecodeExpiredJWT(t *testing.T) {
	keyPair := testKeyPair(t)

	token, err := EncodeJWT(SecureHerTokenClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "1",
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		},
	}, keyPair)
	assert.Nil(t, err)

	_, err = DecodeJWT(token, keyPair)
	assert.NotNil(t, err)
}

func TestDecodeJWTWithWrongKey(t *testing.T) {
	token, err := EncodeJWT(SecureHerTokenClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}, testKeyPair(t))
	assert.Nil(t, err)

	_, err = DecodeJWT(token, testKeyPair(t))
	assert.NotNil(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret-password")
	assert.Nil(t, err)
	assert.NotEqual(t, "secret-password", hash)
	assert.True(t, CheckPasswordHash("secret-password", hash))
	assert.False(t, CheckPasswordHash("wrong-password", hash))
}
