package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// counterKeyHashLen is the number of hex characters of the SHA-256 digest
// kept in counter keys. 32 hex chars (128 bits) is far beyond collision
// concerns for rate limiting while keeping keys short.
const counterKeyHashLen = 32

// CounterKey builds the storage key for a scope+subject counter. The raw
// subject (email hash, IP, ...) is hashed so counter stores never hold PII;
// truncated SHA-256 is sufficient here, no salting required.
func CounterKey(scope Scope, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:%s", scope, hex.EncodeToString(sum[:])[:counterKeyHashLen])
}
