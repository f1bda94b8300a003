package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	cfg "github.com/markdave123-py/jobmatch/internal/config"
	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/models"
)

type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	region  string
	bucket  string
	expiry  time.Duration
}

var _ core.ObjectClient = (*S3Client)(nil)

func NewS3Client(ctx context.Context, awsCfg *cfg.AWSConfig) (*S3Client, error) {
	if awsCfg.AccessKey == "" || awsCfg.SecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if awsCfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	loaded, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(awsCfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsCfg.AccessKey, awsCfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(loaded)
	expiry := awsCfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &S3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		region:  awsCfg.Region,
		bucket:  awsCfg.BucketName,
		expiry:  expiry,
	}, nil
}

func (c *S3Client) Bucket() string { return c.bucket }

// PresignUpload issues a browser-form POST target limited to 1..maxBytes bytes.
// Each meta entry becomes an x-amz-meta-* field the upload must carry.
func (c *S3Client) PresignUpload(ctx context.Context, key, contentType string, maxBytes int64, meta map[string]string) (*models.UploadTarget, error) {
	conditions := []interface{}{
		[]interface{}{"content-length-range", 1, maxBytes},
		map[string]string{"Content-Type": contentType},
	}
	for k, v := range meta {
		conditions = append(conditions, map[string]string{"x-amz-meta-" + k: v})
	}

	req, err := c.presign.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = c.expiry
		o.Conditions = conditions
	})
	if err != nil {
		return nil, fmt.Errorf("s3 presign post failed: %w", err)
	}

	fields := make(map[string]string, len(req.Values)+len(meta)+1)
	for k, v := range req.Values {
		fields[k] = v
	}
	fields["Content-Type"] = contentType
	for k, v := range meta {
		fields["x-amz-meta-"+k] = v
	}

	return &models.UploadTarget{
		URL:       req.URL,
		Fields:    fields,
		ExpiresAt: time.Now().Add(c.expiry),
	}, nil
}

func (c *S3Client) PresignDownload(ctx context.Context, bucket, key string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign get failed: %w", err)
	}
	return req.URL, nil
}

func (c *S3Client) StatObject(ctx context.Context, bucket, key string) (int64, error) {
	ctxHead, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := c.client.HeadObject(ctxHead, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("s3 head %s: %w", key, core.ErrObjectNotFound)
		}
		return 0, fmt.Errorf("s3 head failed: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// DownloadToFile streams the object into w with ranged, concurrent GETs.
func (c *S3Client) DownloadToFile(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	downloader := manager.NewDownloader(c.client)
	n, err := downloader.Download(ctxGet, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("s3 download %s: %w", key, core.ErrObjectNotFound)
		}
		return 0, fmt.Errorf("s3 download failed: %w", err)
	}
	return n, nil
}

func (c *S3Client) DeleteFile(ctx context.Context, bucket, key string) error {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
