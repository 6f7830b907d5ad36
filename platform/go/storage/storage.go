package storage

import (
	"fmt"
	"strings"

	"github.com/orderline-app/orderline/platform/go/tenant"
)

// ObjectLocation describes where a media blob should live.
type ObjectLocation struct {
	Bucket   string
	FullPath string
}

// ResolveObjectLocation combines the store base prefix and a logical key into
// a bucket/path pair.
//   - bucket must come from deployment configuration (one bucket per environment class).
//   - tenant.Space.BasePrefix already includes envKey and trailing slash (e.g. "dev/acme-12/").
//   - logicalKey is a store-relative key such as
//     "products/<product_id>/<filename>" or
//     "messages/<conversation_id>/<message_id>/<filename>".
func ResolveObjectLocation(space tenant.Space, bucket string, logicalKey string) (ObjectLocation, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return ObjectLocation{}, fmt.Errorf("bucket is required")
	}
	key := strings.TrimSpace(logicalKey)
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ObjectLocation{}, fmt.Errorf("logical key is required")
	}

	prefix := space.BasePrefix
	if prefix == "" {
		return ObjectLocation{}, fmt.Errorf("store base prefix is missing")
	}

	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	fullPath := prefix + key
	return ObjectLocation{Bucket: bucket, FullPath: fullPath}, nil
}

// ProductImageKey builds the logical key for a product image.
func ProductImageKey(productID int64, filename string) string {
	return fmt.Sprintf("products/%d/%s", productID, strings.TrimPrefix(filename, "/"))
}

// MessageMediaKey builds the logical key for an inbound or outbound message attachment.
func MessageMediaKey(conversationID, messageID int64, filename string) string {
	return fmt.Sprintf("messages/%d/%d/%s", conversationID, messageID, strings.TrimPrefix(filename, "/"))
}
