package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
)

const blobTimeout = 20 * time.Second

// S3Blob is the inventory.BlobStore implementation: it downscales and
// re-encodes any image wider than maxImageWidth before uploading, so a
// scraped vehicle photo never balloons storage or client payload size.
type S3Blob struct {
	client *s3.Client
	bucket string
}

const maxImageWidth = 1600

func NewS3Blob(ctx context.Context, region, bucket, accessKeyID, secretKey string) (*S3Blob, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(region))
	if accessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Blob{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Put implements inventory.BlobStore.
func (b *S3Blob) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, blobTimeout)
	defer cancel()

	encoded, contentType := reencode(data, contentType)

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(encoded),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", apperr.Upstream("blob put failed", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", b.bucket, key), nil
}

// reencode downscales an image wider than maxImageWidth and re-encodes
// it as JPEG; anything imaging can't decode (or that's already small
// enough) passes through untouched.
func reencode(data []byte, contentType string) ([]byte, string) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data, contentType
	}
	if img.Bounds().Dx() <= maxImageWidth {
		return data, contentType
	}

	resized := imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG); err != nil {
		return data, contentType
	}
	return buf.Bytes(), "image/jpeg"
}

// HTTPImageFetcher is the inventory.ImageFetcher implementation: a
// capped-size plain HTTP GET.
type HTTPImageFetcher struct {
	client *http.Client
}

func NewHTTPImageFetcher() *HTTPImageFetcher {
	return &HTTPImageFetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return body, contentType, nil
}
