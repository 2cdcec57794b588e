package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"unicode"
)

func HashSecretSHA256(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func ConstantTimeEqualHex(aHex, bHex string) bool {
	a, err1 := hex.DecodeString(aHex)
	b, err2 := hex.DecodeString(bHex)
	if err1 != nil || err2 != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EqualSecrets compares two plaintext secrets without leaking timing.
func EqualSecrets(a, b string) bool {
	return ConstantTimeEqualHex(HashSecretSHA256(a), HashSecretSHA256(b))
}

// OCPITokenCandidates returns the credentials an "Authorization: Token ..."
// header may stand for. OCPI 2.2 peers send the token base64 encoded, earlier
// versions send it verbatim, so a decodable value yields both readings.
func OCPITokenCandidates(header string) []string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Token") {
		return nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil && printable(decoded) && len(decoded) > 0 {
		return []string{string(decoded), value}
	}
	return []string{value}
}

func printable(b []byte) bool {
	for _, r := range string(b) {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
