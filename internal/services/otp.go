package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// CodeTTL is how long an issued sign-in or reset code stays valid.
const CodeTTL = 5 * time.Minute

const (
	codeMin  = 100000
	codeSpan = 900000
)

var (
	mobilePattern    = regexp.MustCompile(`^[6-9]\d{9}$`)
	startCodePattern = regexp.MustCompile(`^\d{6}$`)
)

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// ValidMobile reports whether mobile is a ten digit number starting with 6-9.
func ValidMobile(mobile string) bool {
	return mobilePattern.MatchString(mobile)
}

// normalizeMobile validates mobile as submitted. Surrounding whitespace is
// not stripped and makes the number invalid.
func normalizeMobile(mobile string) (string, error) {
	if !ValidMobile(mobile) {
		return "", ErrInvalidMobile
	}
	return mobile, nil
}
