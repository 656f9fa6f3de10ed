package random

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const upperAlnum = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

func pick(set string, length int) (string, error) {
	b := make([]byte, length)
	l := big.NewInt(int64(len(set)))
	for i := range b {
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = set[num.Int64()]
	}
	return string(b), nil
}

func StringSecure(length int) (string, error) {
	return pick(charset, length)
}

// Code returns an upper-case code without the ambiguous I and O, suitable
// for numbers printed on documents.
func Code(length int) (string, error) {
	return pick(upperAlnum, length)
}

// Token returns a URL-safe secret of n random bytes and the SHA-256 hash
// under which it is stored.
func Token(n int) (plain string, hash []byte, err error) {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		return "", nil, err
	}
	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, Hash(plain), nil
}

func Hash(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	return sum[:]
}
