package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/config"
	"github.com/ignite/chart-gateway/internal/pkg/httpretry"
)

// ErrNotFound means the upstream has no table at the requested path.
var ErrNotFound = errors.New("tabular: no table at path")

// Fetcher retrieves one raw chart table.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
}

// HTTPFetcher downloads CSV exports over HTTP.
type HTTPFetcher struct {
	baseURL    string
	userAgent  string
	httpClient httpretry.HTTPDoer
}

// NewHTTPFetcher creates a fetcher for the CSV download site.
func NewHTTPFetcher(cfg config.TabularConfig, upstream config.UpstreamConfig) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: upstream.UserAgent,
		httpClient: httpretry.NewLimitedClient(
			httpretry.NewRetryClient(&http.Client{Timeout: upstream.Timeout()}, upstream.MaxRetries),
			upstream.RequestsPerSecond, upstream.Burst,
		),
	}
}

func (f *HTTPFetcher) Name() string { return "tabular-http" }

// Fetch GETs {baseURL}/{path}. 404 maps to ErrNotFound, 401/403 to an auth
// error and any other non-2xx status to an upstream error.
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	fullURL := f.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &chart.UpstreamError{Source: f.Name(), Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp.Body)
		return nil, &chart.UpstreamAuthError{
			Source: f.Name(),
			Reason: fmt.Sprintf("upstream refused access (status %d)", resp.StatusCode),
		}
	default:
		snippet := readSnippet(resp.Body)
		return nil, &chart.UpstreamError{
			Source:     f.Name(),
			StatusCode: resp.StatusCode,
			Err:        errors.New(snippet),
		}
	}
}

// ObjectGetter is the subset of the S3 client the archive fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads archived CSV exports from an S3 bucket.
type S3Fetcher struct {
	client  ObjectGetter
	bucket  string
	prefix  string
	limiter *rate.Limiter // nil means unlimited
}

// NewS3Fetcher builds an S3-backed fetcher. Static keys win over a named
// profile; with neither, the default credential chain is used. The SDK
// client gets the upstream timeout and retry budget, and calls are paced by
// the upstream rate limit.
func NewS3Fetcher(ctx context.Context, cfg config.TabularConfig, upstream config.UpstreamConfig) (*S3Fetcher, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithRetryer(func() aws.Retryer { return s3Retryer(upstream.MaxRetries) }),
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(upstream.Timeout())),
	}
	switch {
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	case cfg.AWSProfile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	f := NewS3FetcherWithClient(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
	f.limiter = httpretry.NewLimiter(upstream.RequestsPerSecond, upstream.Burst)
	return f, nil
}

// s3Retryer makes one attempt when maxRetries is 0, otherwise the standard
// retryer with maxRetries extra attempts.
func s3Retryer(maxRetries int) aws.Retryer {
	if maxRetries <= 0 {
		return aws.NopRetryer{}
	}
	return retry.AddWithMaxAttempts(retry.NewStandard(), maxRetries+1)
}

// NewS3FetcherWithClient wraps an existing S3 client.
func NewS3FetcherWithClient(client ObjectGetter, bucket, prefix string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket, prefix: prefix}
}

func (f *S3Fetcher) Name() string { return "tabular-s3" }

// Fetch reads s3://bucket/prefix+path.
func (f *S3Fetcher) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &chart.UpstreamError{Source: f.Name(), Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	key := f.prefix + strings.TrimLeft(path, "/")
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return out.Body, nil
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return nil, ErrNotFound
		case "AccessDenied", "InvalidAccessKeyId", "ExpiredToken", "SignatureDoesNotMatch":
			return nil, &chart.UpstreamAuthError{Source: f.Name(), Reason: "archive access denied", Err: err}
		}
	}
	return nil, &chart.UpstreamError{Source: f.Name(), Err: fmt.Errorf("get s3://%s/%s: %w", f.bucket, key, err)}
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}

func readSnippet(body io.ReadCloser) string {
	defer body.Close()
	b, _ := io.ReadAll(io.LimitReader(body, 512))
	return strings.TrimSpace(string(b))
}
