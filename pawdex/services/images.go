package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ImageService serves card artwork from a DigitalOcean Spaces bucket. Objects
// are keyed by breed slug under the configured card root.
type ImageService struct {
	client   *s3.Client
	bucket   string
	region   string
	cardRoot string
}

func NewImageService(spacesKey, spacesSecret, region, bucket, cardRoot string) (*ImageService, error) {
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
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &ImageService{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		region:   region,
		cardRoot: strings.TrimPrefix(cardRoot, "/"),
	}, nil
}

// BreedSlug normalizes a breed name into the object key segment used in the
// bucket: lowercase, spaces to underscores.
func BreedSlug(breed string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(breed)), " ", "_")
}

// CardImageURL returns the public CDN URL for a breed's card artwork.
func (s *ImageService) CardImageURL(breed string) string {
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s/%s.jpg",
		s.bucket, s.region, s.cardRoot, BreedSlug(breed))
}

// UploadCardImage stores artwork for a breed, overwriting any previous object.
func (s *ImageService) UploadCardImage(ctx context.Context, breed string, body []byte) (string, error) {
	key := fmt.Sprintf("%s/%s.jpg", s.cardRoot, BreedSlug(breed))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("image/jpeg"),
		ACL:         "public-read",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image for %s: %w", breed, err)
	}
	return s.CardImageURL(breed), nil
}

// DeleteCardImage removes a breed's artwork from the bucket.
func (s *ImageService) DeleteCardImage(ctx context.Context, breed string) error {
	key := fmt.Sprintf("%s/%s.jpg", s.cardRoot, BreedSlug(breed))
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf("failed to delete image for %s: %w", breed, err)
	}
	return nil
}

func (s *ImageService) GetBucket() string {
	return s.bucket
}

func (s *ImageService) GetRegion() string {
	return s.region
}
