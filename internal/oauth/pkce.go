package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// GeneratePKCE generates a PKCE code_verifier and code_challenge using S256.
//
// Per RFC 7636 the verifier is 43-128 characters drawn from the unreserved
// set [A-Za-z0-9-._~]; base64url encoding of 48 random bytes yields 64
// characters inside that set.
func GeneratePKCE() (verifier, challenge string) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	return verifier, ChallengeFromVerifier(verifier)
}

// ChallengeFromVerifier computes the S256 code_challenge for a verifier.
func ChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE reports whether verifier hashes to challenge. The comparison is
// constant time; malformed input simply fails to match.
func VerifyPKCE(verifier, challenge string) bool {
	expected := ChallengeFromVerifier(verifier)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
