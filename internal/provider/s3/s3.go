// Package s3 provides a directory provider over an S3 bucket.
//
// Folders are key prefixes ending in "/"; a folder's id is its full prefix
// ("Reports/2024/"). Objects directly under a prefix are its files.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
	"github.com/foldergate/foldergate/internal/retry"
	"github.com/foldergate/foldergate/internal/tree"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// Prefix roots the hierarchy below a key prefix, e.g. "shared/".
	Prefix string
}

// api is the subset of the S3 client the provider calls.
type api interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Provider lists prefixes of a bucket as folders.
type Provider struct {
	client   api
	bucket   string
	prefix   string
	endpoint string
	policy   retry.Policy
}

// New connects to S3 (or any S3-compatible endpoint such as MinIO).
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Retries happen in the provider's policy, once per call.
		o.Retryer = aws.NopRetryer{}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	logging.Info("s3 provider ready",
		zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix), zap.String("endpoint", endpoint))
	return newWithClient(client, cfg.Bucket, cfg.Prefix, endpoint), nil
}

func newWithClient(client api, bucket, prefix, endpoint string) *Provider {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Provider{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		endpoint: endpoint,
		policy:   retry.DefaultPolicy(),
	}
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// classify marks err transient when the SDK would retry it: throttling,
// 5xx responses and connection failures. Cancellation and service errors
// such as NoSuchBucket or AccessDenied are returned as is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	retryable := awsretry.IsErrorRetryables(awsretry.DefaultRetryables).IsErrorRetryable(err)
	throttled := awsretry.IsErrorThrottles(awsretry.DefaultThrottles).IsErrorThrottle(err)
	if retryable.Bool() || throttled.Bool() {
		return retry.Transient(err)
	}
	return err
}

// listing is one level of a prefix.
type listing struct {
	prefixes []string
	keys     []string
}

func (p *Provider) list(ctx context.Context, prefix string) (listing, error) {
	start := time.Now()
	l, err := retry.DoValue(ctx, p.policy, func() (listing, error) {
		var l listing
		pager := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(p.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return listing{}, classify(err)
			}
			for _, cp := range page.CommonPrefixes {
				l.prefixes = append(l.prefixes, aws.ToString(cp.Prefix))
			}
			for _, obj := range page.Contents {
				l.keys = append(l.keys, aws.ToString(obj.Key))
			}
		}
		return l, nil
	})
	metrics.RecordProviderOperation("s3", "list", err == nil)
	if err != nil {
		return listing{}, fmt.Errorf("list s3://%s/%s: %w", p.bucket, prefix, err)
	}
	logging.WithContext(ctx).Debug("s3 list",
		zap.String("prefix", prefix),
		zap.Int("folders", len(l.prefixes)),
		zap.Int("files", len(l.keys)),
		zap.Duration("duration", time.Since(start)))
	return l, nil
}

// lastSegment returns the display name of a prefix or key below parent.
func lastSegment(parent, key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, parent), "/")
}

// ListTopLevel returns the prefixes directly below the configured root.
func (p *Provider) ListTopLevel(ctx context.Context) ([]tree.Stub, error) {
	l, err := p.list(ctx, p.prefix)
	if err != nil {
		return nil, err
	}
	stubs := make([]tree.Stub, 0, len(l.prefixes))
	for _, cp := range l.prefixes {
		stubs = append(stubs, tree.Stub{ID: cp, Name: lastSegment(p.prefix, cp)})
	}
	return stubs, nil
}

// BuildSubtree lists folderID's prefix level by level.
func (p *Provider) BuildSubtree(ctx context.Context, b *tree.Builder, folderID string) error {
	l, err := p.list(ctx, folderID)
	if err != nil {
		return err
	}
	for _, key := range l.keys {
		// Zero-byte "folder/" marker objects are not files.
		if key == folderID {
			continue
		}
		b.AddFile(folderID, lastSegment(folderID, key))
	}
	for _, cp := range l.prefixes {
		if b.AddFolder(folderID, cp, lastSegment(folderID, cp)) {
			if err := p.BuildSubtree(ctx, b, cp); err != nil {
				return err
			}
		}
	}
	return nil
}

// Upload puts r at folderID+name and returns the object URL.
func (p *Provider) Upload(ctx context.Context, folderID, name string, r io.Reader) (string, error) {
	if folderID == "" {
		folderID = p.prefix
	}
	if !strings.HasPrefix(folderID, p.prefix) || (folderID != "" && !strings.HasSuffix(folderID, "/")) {
		return "", fmt.Errorf("invalid folder id %q", folderID)
	}
	key := folderID + name

	// The SDK needs a seekable body to sign the request; retries rewind it.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	offset, err := body.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	start := time.Now()
	err = retry.Do(ctx, p.policy, func() error {
		if _, err := body.Seek(offset, io.SeekStart); err != nil {
			return err
		}
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   body,
		})
		return classify(err)
	})
	metrics.RecordProviderOperation("s3", "put_object", err == nil)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	logging.WithContext(ctx).Debug("s3 put object",
		zap.String("key", key), zap.Duration("duration", time.Since(start)))
	return p.objectURL(key), nil
}

func (p *Provider) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if p.endpoint != "" {
		return strings.TrimSuffix(p.endpoint, "/") + "/" + p.bucket + "/" + escaped
	}
	return "s3://" + p.bucket + "/" + escaped
}

// Type returns "s3".
func (p *Provider) Type() string { return "s3" }

// Close is a no-op; the SDK client holds no resources that need releasing.
func (p *Provider) Close() error { return nil }
