package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPhone(t *testing.T) {
	valid := []string{
		"+919876543210",
		"9876543210",
		"6000000000",
		"7123456789",
		"8999999999",
	}
	for _, s := range valid {
		assert.True(t, IsValidPhone(s), s)
	}

	invalid := []string{
		"",
		"12345",
		"5876543210",          // first digit outside 6-9
		"+915876543210",       // first digit outside 6-9 with prefix
		"98765432100",         // eleven digits
		"987654321",           // nine digits
		"+91 9876543210",      // embedded space
		"919876543210",        // country code without plus
		"+919876543210x",      // trailing junk
		"abcdefghij",          // not digits
	}
	for _, s := range invalid {
		assert.False(t, IsValidPhone(s), s)
	}
}

func TestIsValidGmail(t *testing.T) {
	valid := []string{
		"asha@gmail.com",
		"asha.k@gmail.com",
		"asha+family@gmail.com",
		"a_s-h.a99@gmail.com",
	}
	for _, s := range valid {
		assert.True(t, IsValidGmail(s), s)
	}

	invalid := []string{
		"",
		"asha@yahoo.com",
		"asha@gmail.co",
		"asha@GMAIL.COM", // domain is matched literally per fixed contract
		"@gmail.com",
		"asha gmail.com",
		"asha@gmail.com ",
	}
	for _, s := range invalid {
		assert.False(t, IsValidGmail(s), s)
	}
}
