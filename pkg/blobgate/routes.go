package blobgate

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// RouteSpec is a caller-supplied identifier used to resolve a binding.
// The set of shapes is closed: AliasRoute, ExternalAliasRoute,
// ExternalIDRoute, BindingIDRoute and BucketRoute. All shapes except
// BucketRoute are pure lookups; BucketRoute lazily creates a default
// binding for the named bucket on first use.
type RouteSpec interface {
	isRouteSpec()
}

// AliasRoute resolves by channel and operation alias.
type AliasRoute struct {
	ChannelAlias   string
	OperationAlias string
}

// ExternalAliasRoute resolves by the upstream system's aliases.
type ExternalAliasRoute struct {
	ChannelExternalAlias   string
	OperationExternalAlias string
}

// ExternalIDRoute resolves by the upstream system's numeric ids.
type ExternalIDRoute struct {
	ChannelExternalID   int64
	OperationExternalID int64
}

// BindingIDRoute resolves an explicit binding id.
type BindingIDRoute struct {
	BindingID uuid.UUID
}

// BucketRoute names a bucket directly; channel and operation default to
// "default" and the binding is created on first use.
type BucketRoute struct {
	Bucket string
}

func (AliasRoute) isRouteSpec()         {}
func (ExternalAliasRoute) isRouteSpec() {}
func (ExternalIDRoute) isRouteSpec()    {}
func (BindingIDRoute) isRouteSpec()     {}
func (BucketRoute) isRouteSpec()        {}

var (
	bucketInvalidChars = regexp.MustCompile(`[^a-z0-9.-]`)
	bucketEdgeDashes   = regexp.MustCompile(`(^-+)|(-+$)`)
)

// NormalizeBucketName lower-cases a bucket name, replaces characters
// outside [a-z0-9.-] with '-' and strips leading/trailing dashes. The
// S3 backend requires lowercase names.
func NormalizeBucketName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = bucketInvalidChars.ReplaceAllString(name, "-")
	return bucketEdgeDashes.ReplaceAllString(name, "")
}
