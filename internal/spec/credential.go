package spec

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argonParams mirrors the defaults recommended by the Argon2 RFC draft:
// time=1, memory=64MB, parallelism=4, keyLen=32.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// HashArgon2 produces a "$argon2id$salt$hash" encoded credential hash.
func HashArgon2(plain string, salt []byte) string {
	sum := argon2.IDKey([]byte(plain), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum))
}

// VerifyCredential checks the supplied plaintext `cred` against a Member's
// stored Credential, using plain equality or Argon2id verification per
// spec §6.3. Constant-time comparisons are used throughout to avoid
// timing side channels on the auth path.
func VerifyCredential(stored Credential, cred string) bool {
	if stored.Plain != "" {
		return subtle.ConstantTimeCompare([]byte(stored.Plain), []byte(cred)) == 1
	}
	if stored.ArgonHash == "" {
		return false
	}
	parts := strings.Split(stored.ArgonHash, "$")
	if len(parts) != 4 || parts[1] != "argon2id" {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(cred), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}
