package archive

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/gdi/pkg/errors"
)

// S3Config locates the archive bucket.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the S3 endpoint, e.g. for MinIO; it implies path-style addressing
	Endpoint string
}

// uploader is the subset of manager.Uploader used by S3Sink.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink uploads payloads to an S3 bucket.
type S3Sink struct {
	uploader uploader
	bucket   string
	prefix   string
	codec    Codec
}

// NewS3Sink loads the default AWS credential chain and creates the sink.
func NewS3Sink(ctx context.Context, cfg S3Config, codec Codec) (*S3Sink, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Sink(manager.NewUploader(client), cfg, codec), nil
}

func newS3Sink(u uploader, cfg S3Config, codec Codec) *S3Sink {
	return &S3Sink{uploader: u, bucket: cfg.Bucket, prefix: cfg.Prefix, codec: codec}
}

// Put uploads body under prefix/key plus the codec extension.
func (s *S3Sink) Put(ctx context.Context, key string, body []byte) error {
	data, err := s.codec.Encode(body)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if enc := s.codec.ContentEncoding(); enc != "" {
		input.ContentEncoding = aws.String(enc)
	}

	_, err = s.uploader.Upload(ctx, input)
	return err
}

func (s *S3Sink) objectKey(key string) string {
	return path.Join(s.prefix, key) + s.codec.Extension()
}
