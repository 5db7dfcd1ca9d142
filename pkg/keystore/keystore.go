// Package keystore fetches signing material from S3, such as the GitHub
// App private key used to mint installation tokens.
package keystore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Store struct {
	client *s3.Client
	bucket string

	mu    sync.Mutex
	cache map[string][]byte
}

func New(accessKey, secretKey, region, bucket string) (*Store, error) {
	creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(creds),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		cache:  make(map[string][]byte),
	}, nil
}

// Fetch downloads a key object once per process; signing keys rotate by
// redeploy, not in place.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if body, ok := s.cache[key]; ok {
		return body, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch key %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", key, err)
	}

	s.cache[key] = body

	return body, nil
}
