package inventory

import (
	"context"
	"fmt"
)

// BlobStore is C7's object-storage surface, as consumed by the
// inventory pipeline. The concrete implementation (internal/adapters)
// wraps aws-sdk-go-v2's S3 client.
type BlobStore interface {
	// Put stores data under key and returns the URL a client can fetch
	// it from.
	Put(ctx context.Context, key string, contentType string, data []byte) (url string, err error)
}

// ImageFetcher retrieves the raw bytes of an externally hosted image so
// it can be re-encoded and persisted to blob storage.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// PersistImages downloads each external image and stores it under a
// deterministic key so re-scraping the same vehicle overwrites rather
// than accumulates (spec.md §4.4). A download or store failure for one
// image downgrades that entry to the original external URL — a
// successful remote image is never dropped from the result.
func PersistImages(ctx context.Context, fetcher ImageFetcher, blob BlobStore, dealershipID, vehicleID int64, images []string) []string {
	out := make([]string, len(images))
	for i, srcURL := range images {
		out[i] = srcURL

		data, contentType, err := fetcher.Fetch(ctx, srcURL)
		if err != nil {
			continue
		}

		key := fmt.Sprintf("%d/%d/%d%s", dealershipID, vehicleID, i, extFor(contentType))
		localURL, err := blob.Put(ctx, key, contentType, data)
		if err != nil {
			continue
		}
		out[i] = localURL
	}
	return out
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
