package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GetGravatarURL builds the Gravatar URL for an email address. A size of
// zero or less falls back to 128px. The "mp" default serves a neutral
// silhouette for addresses without a Gravatar account.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 128
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	hash := md5.Sum([]byte(normalized))

	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}
