package channel

import (
	"github.com/keepmind9/chanbridge/pkg/constants"
)

// MaskSecret masks tokens and app secrets for logging
func MaskSecret(s string) string {
	if len(s) <= constants.MinSecretLengthForMasking {
		return "***"
	}
	return s[:constants.SecretMaskPrefixLength] + "***" + s[len(s)-constants.SecretMaskSuffixLength:]
}
