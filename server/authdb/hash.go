package authdb

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Login codes are stored hashed, so a leaked database doesn't hand out live
// codes. Our hash is 1 byte of version, followed by 20 bytes of salt,
// followed by 32 bytes of scrypt.

const hashVersion1 = 1
const saltSizeV1 = 20
const scryptHashSizeV1 = 32
const scryptNV1 = 16384
const scryptrV1 = 8
const scryptpV1 = 1
const hashLenV1 = 1 + saltSizeV1 + scryptHashSizeV1

// Returns a saltSizeV1 salt
func createSalt() []byte {
	s := [saltSizeV1]byte{}
	if n, _ := rand.Read(s[:]); n != saltSizeV1 {
		panic("Error creating code salt")
	}
	return s[:]
}

// Returns a hashLenV1 byte key
func hashCodeWithSalt(salt []byte, code string) []byte {
	dk, err := scrypt.Key([]byte(code), salt, scryptNV1, scryptrV1, scryptpV1, scryptHashSizeV1)
	if err != nil {
		panic(fmt.Sprintf("Error hashing login code: %v", err))
	}
	final := [hashLenV1]byte{}
	final[0] = hashVersion1
	copy(final[1:1+saltSizeV1], salt)
	copy(final[1+saltSizeV1:1+saltSizeV1+scryptHashSizeV1], dk)
	return final[:]
}

// Create a random salt, and return fully baked hash, of length hashLenV1
func HashLoginCode(code string) []byte {
	return hashCodeWithSalt(createSalt(), code)
}

// Returns true if a plaintext code matches a stored hash
func VerifyCodeHash(code string, hash []byte) bool {
	if len(hash) != hashLenV1 {
		return false
	}
	salt := hash[1 : 1+saltSizeV1]
	dk, _ := scrypt.Key([]byte(code), salt, scryptNV1, scryptrV1, scryptpV1, scryptHashSizeV1)
	return subtle.ConstantTimeCompare(dk, hash[1+saltSizeV1:1+saltSizeV1+scryptHashSizeV1]) == 1
}
