// Package objectkey generates object keys for the gateway's upload and
// migration paths.
package objectkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate builds a collision-resistant key of the form
// {prefix}-{random-hex}.{ext}. An empty prefix defaults to the UTC
// date (yyyy-MM-dd) so keys group naturally by upload day; a
// caller-supplied prefix is trimmed of surrounding slashes. An empty
// ext leaves the key without a suffix.
func Generate(prefix, ext string, now time.Time) string {
	pre := strings.Trim(strings.TrimSpace(prefix), "/")
	if pre == "" {
		pre = now.UTC().Format("2006-01-02")
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if ext == "" {
		return pre + "-" + id
	}
	return pre + "-" + id + "." + ext
}

// ForLegacy builds the deterministic key used for migrated legacy
// blobs, so re-running a migration overwrites rather than duplicates.
func ForLegacy(legacyID int64, ext string) string {
	if ext == "" {
		return fmt.Sprintf("docs/%d", legacyID)
	}
	return fmt.Sprintf("docs/%d.%s", legacyID, ext)
}
