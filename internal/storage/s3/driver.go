// Package s3 provides an aws-sdk-go-v2 implementation of storage.Store.
// It talks to AWS S3 directly or, when an endpoint is configured, to any
// S3-compatible service using path-style addressing.
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/metrics"
	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/storage"
)

const (
	driverName    = "s3"
	defaultRegion = "us-east-1"
)

// API is the subset of the S3 client used by the driver.
type API interface {
	awss3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Driver implements storage.Store on aws-sdk-go-v2.
type Driver struct {
	api     API
	presign *awss3.PresignClient
	bucket  string
}

// New loads an AWS config with static credentials from cfg.
func New(ctx context.Context, cfg storage.Config) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		),
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "load aws config", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(EndpointURL(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true
		}
	})

	return &Driver{
		api:     client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// NewWithAPI wraps an existing client. Presigning is disabled.
func NewWithAPI(api API, bucket string) *Driver {
	return &Driver{api: api, bucket: bucket}
}

// EndpointURL adds a scheme to a bare host:port endpoint.
func EndpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreOperation(driverName, op, time.Since(start), *err == nil)
}

// Ping checks that the bucket is reachable with the configured credentials.
func (d *Driver) Ping(ctx context.Context) (err error) {
	defer observe("ping", time.Now(), &err)

	if _, err = d.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(d.bucket)}); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op: the SDK client pools connections per process.
func (d *Driver) Close() error {
	return nil
}

// List pages through ListObjectsV2 with a "/" delimiter.
func (d *Driver) List(ctx context.Context, prefix string) (entries []storage.Entry, err error) {
	defer observe("list", time.Now(), &err)

	p := awss3.NewListObjectsV2Paginator(d.api, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects")
		}
		for _, cp := range page.CommonPrefixes {
			entries = append(entries, storage.Entry{
				Path:  aws.ToString(cp.Prefix),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			entries = append(entries, storage.Entry{
				Path:         key,
				Size:         aws.ToInt64(obj.Size),
				IsDir:        storage.IsDirKey(key),
				LastModified: obj.LastModified,
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}
	return entries, nil
}

// Read downloads the whole object.
func (d *Driver) Read(ctx context.Context, key string) (data []byte, err error) {
	defer observe("read", time.Now(), &err)

	out, err := d.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	defer func() { _ = out.Body.Close() }()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, mapError(err, "failed to read object")
	}
	return data, nil
}

// Write uploads data as key.
func (d *Driver) Write(ctx context.Context, key string, data []byte) (err error) {
	defer observe("write", time.Now(), &err)

	in := &awss3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if !storage.IsDirKey(key) {
		in.ContentType = aws.String(pathmodel.ContentType(key))
	}
	if _, err = d.api.PutObject(ctx, in); err != nil {
		return mapError(err, "failed to put object")
	}
	metrics.RecordBytesWritten(len(data))
	return nil
}

// Delete removes key.
func (d *Driver) Delete(ctx context.Context, key string) (err error) {
	defer observe("delete", time.Now(), &err)

	if _, err = d.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// Stat issues a HEAD request for key.
func (d *Driver) Stat(ctx context.Context, key string) (entry storage.Entry, err error) {
	defer observe("stat", time.Now(), &err)

	out, err := d.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.Entry{}, mapError(err, "failed to stat object")
	}
	return storage.Entry{
		Path:         key,
		Size:         aws.ToInt64(out.ContentLength),
		IsDir:        storage.IsDirKey(key),
		LastModified: out.LastModified,
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
	}, nil
}

// PresignGet signs a GET request for key valid for ttl.
func (d *Driver) PresignGet(ctx context.Context, key string, ttl time.Duration) (u string, err error) {
	defer observe("presign", time.Now(), &err)

	if d.presign == nil {
		return "", errs.New(errs.KindUnknown, "presigning is not configured")
	}
	req, err := d.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, "failed to presign object")
	}
	return req.URL, nil
}
