package authdb

import (
	"crypto/rand"
)

// Login codes are typed by hand, so the alphabet excludes lookalikes
// (0/O, 1/I). 32 symbols divides 256 evenly, which keeps the modulo
// reduction below unbiased.
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// At 6 characters that's 30 bits, which is plenty given the per-email
// verify rate limit.
const LoginCodeLength = 6

func StrongRandomCode(nchars int) string {
	buf := make([]byte, nchars)
	if n, _ := rand.Read(buf[:]); n != nchars {
		panic("Unable to read from crypto/rand")
	}
	for i := 0; i < nchars; i++ {
		buf[i] = codeChars[buf[i]%byte(len(codeChars))]
	}
	return string(buf)
}

func StrongRandomBytes(nbytes int) []byte {
	buf := make([]byte, nbytes)
	if n, _ := rand.Read(buf[:]); n != nbytes {
		panic("Unable to read from crypto/rand")
	}
	return buf
}
