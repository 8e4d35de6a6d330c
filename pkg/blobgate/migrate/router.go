package migrate

import (
	"fmt"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// BucketRouter maps a legacy channel id to a destination bucket name.
// Channels without an explicit mapping fall back to a deterministic
// per-channel bucket, so re-runs always route an item the same way.
type BucketRouter struct {
	names map[int64]string
}

// NewBucketRouter creates a router from an explicit channel-to-bucket
// map. A nil map is allowed; every channel then uses the fallback.
func NewBucketRouter(names map[int64]string) *BucketRouter {
	return &BucketRouter{names: names}
}

// BucketFor returns the normalized destination bucket for a channel.
func (r *BucketRouter) BucketFor(channelID int64) string {
	if name, ok := r.names[channelID]; ok {
		return blobgate.NormalizeBucketName(name)
	}
	return fmt.Sprintf("default-channel-%d-documents", channelID)
}
