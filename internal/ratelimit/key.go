package ratelimit

import (
	"fmt"
	"time"
)

// BucketKey identifies one counter bucket: one org, one API key, one quota
// class, one window, one window start. A zero APIKeyID means the bucket is
// not attributed to a single credential.
type BucketKey struct {
	OrgID    uint64
	APIKeyID uint64
	Class    Class
	Window   Window
	Start    time.Time
}

// NewBucketKey builds the bucket key for id at now.
func NewBucketKey(id Identity, class Class, window Window, now time.Time) BucketKey {
	return BucketKey{
		OrgID:    id.OrgID,
		APIKeyID: id.APIKeyID,
		Class:    class,
		Window:   window,
		Start:    window.Start(now),
	}
}

// String renders the canonical storage key. The API key segment is omitted
// when the bucket has no credential attribution.
func (k BucketKey) String() string {
	if k.APIKeyID == 0 {
		return fmt.Sprintf("o:%d:%s:%s:%d", k.OrgID, k.Class, k.Window, k.Start.Unix())
	}
	return fmt.Sprintf("o:%d:k:%d:%s:%s:%d", k.OrgID, k.APIKeyID, k.Class, k.Window, k.Start.Unix())
}

// Reset returns the instant the bucket's window ends.
func (k BucketKey) Reset() time.Time {
	return k.Start.Add(k.Window.Duration())
}
