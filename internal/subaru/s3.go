package subaru

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client wraps the S3 client used for s3:// source URLs. Works against
// AWS proper or any S3-compatible store (R2, MinIO) via SUBARU_S3_ENDPOINT.
type S3Client struct {
	Client *s3.Client
}

// newS3Client initializes an S3 client from configuration values. Static
// credentials are optional; without them the default provider chain applies.
func newS3Client(ctx context.Context, cfg *Config) (*S3Client, error) {
	endpoint := cfg.Values["SUBARU_S3_ENDPOINT"]
	region := cfg.Values["SUBARU_S3_REGION"]
	accessKey := cfg.Values["SUBARU_S3_ACCESS_KEY_ID"]
	secretKey := cfg.Values["SUBARU_S3_SECRET_ACCESS_KEY"]

	if region == "" {
		region = "auto"
	}

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if accessKey != "" && secretKey != "" {
		options = append(options,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, opts ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint}, nil
		})
		options = append(options, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	if Debug {
		options = append(options, awsconfig.WithClientLogMode(aws.LogRetries|aws.LogRequest))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3Client{Client: client}, nil
}

// splitS3URL splits s3://bucket/key into its bucket and key parts.
func splitS3URL(rawURL string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(rawURL, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 url: %s", rawURL)
	}
	return parts[0], parts[1], nil
}

// downloadS3 fetches an s3:// object into absPath.
func downloadS3(ctx context.Context, rawURL, absPath string, cfg *Config) error {
	bucket, key, err := splitS3URL(rawURL)
	if err != nil {
		return err
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}

	output, err := client.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 get object failed: %w", err)
	}
	defer output.Body.Close()

	out, err := os.Create(absPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", absPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, output.Body); err != nil {
		return fmt.Errorf("failed to write s3 object: %w", err)
	}
	return nil
}
