package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ItemImageService resolves and manages item art stored on an S3-compatible
// Spaces bucket. The catalog's image_ref column holds keys relative to
// ItemRoot.
type ItemImageService struct {
	client   *s3.Client
	bucket   string
	region   string
	ItemRoot string
}

func NewItemImageService(spacesKey, spacesSecret, region, bucket, itemRoot string) (*ItemImageService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load Spaces config: %w", err)
	}

	return &ItemImageService{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		region:   region,
		ItemRoot: strings.TrimPrefix(itemRoot, "/"),
	}, nil
}

// ImageURL builds the public CDN URL for an item's image_ref. An empty ref
// yields an empty URL so callers can skip the thumbnail.
func (s *ItemImageService) ImageURL(imageRef string) string {
	if imageRef == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", s.bucket, s.region, s.key(imageRef))
}

// UploadItemImage stores new item art under the catalog's image_ref key.
func (s *ItemImageService) UploadItemImage(ctx context.Context, imageRef string, body io.Reader) error {
	key := s.key(imageRef)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        body,
		ContentType: aws.String("image/png"),
		ACL:         "public-read",
	})
	if err != nil {
		return fmt.Errorf("failed to upload item image %s: %w", imageRef, err)
	}
	return nil
}

// DeleteItemImage removes item art, used when retiring catalog entries.
func (s *ItemImageService) DeleteItemImage(ctx context.Context, imageRef string) error {
	key := s.key(imageRef)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete item image %s: %w", imageRef, err)
	}
	return nil
}

// ImageExists reports whether the art object behind image_ref is present.
func (s *ItemImageService) ImageExists(ctx context.Context, imageRef string) bool {
	key := s.key(imageRef)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err == nil
}

func (s *ItemImageService) key(imageRef string) string {
	ref := strings.TrimPrefix(imageRef, "/")
	if s.ItemRoot == "" {
		return ref
	}
	return s.ItemRoot + "/" + ref
}
