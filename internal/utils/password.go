package utils

import "golang.org/x/crypto/bcrypt" // bcrypt for staff credential hashing

// HashPassword hashes a staff password with bcrypt at the given cost.
// Costs below bcrypt's default are raised to it: STAFF_PASS_HASH is
// provisioned once, so slow hashing is fine and a weak hash is not.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored staff hash.
// A malformed hash simply fails verification.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
