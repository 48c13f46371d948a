package license

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Coupon codes look like PRO30-1A2B3C4D-9F0E: class id, 8 random uppercase hex
// characters, and a 4-character keyed checksum. The checksum is tamper
// evidence against casually guessed codes, not a security boundary; the
// registry's used flag is what actually gates redemption.

// GenerateCode produces a fresh coupon code for the given class.
func GenerateCode(classID, secret string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("coupon randomness: %w", err)
	}
	random := strings.ToUpper(hex.EncodeToString(buf))
	return classID + "-" + random + "-" + checksum(classID, random, secret), nil
}

// VerifyCode checks the structure and checksum of a code. It lets redemption
// reject malformed codes without a registry lookup.
func VerifyCode(code, secret string) bool {
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		return false
	}
	classID, random, sig := parts[0], parts[1], parts[2]
	if classID == "" || len(random) != 8 || len(sig) != 4 {
		return false
	}
	return checksum(classID, random, secret) == sig
}

func checksum(classID, random, secret string) string {
	sum := sha256.Sum256([]byte(classID + "-" + random + "-" + secret))
	return strings.ToUpper(hex.EncodeToString(sum[:2]))
}
