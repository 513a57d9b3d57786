package obmark

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/tcnksm/go-httpstat"
)

// the maximum number of keys S3 returns per ListObjectsV2 page
const maxPageSizeS3 = 1000

type S3ObjectClient struct {
	delegate *s3.Client
	cfg      *S3ObjectClientConfig
}

type S3ObjectClientConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Insecure  bool
	PathStyle bool
	Timeout   time.Duration

	// OnLatency, if set, receives the connection phase breakdown of every
	// successful PUT and GET.
	OnLatency func(op string, key string, lat Latency)
}

// Duration of the connection phases of a single request.
type Latency struct {
	DNSLookup        time.Duration
	TCPConnection    time.Duration
	TLSHandshake     time.Duration
	ServerProcessing time.Duration
}

func NewS3Client(ctx context.Context, obConfig *S3ObjectClientConfig) (*S3ObjectClient, error) {
	opts := []func(*config.LoadOptions) error{}
	if obConfig.Region != "" {
		opts = append(opts, config.WithRegion(obConfig.Region))
	}
	if obConfig.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(obConfig.AccessKey, obConfig.SecretKey, "")))
	}

	// gets the AWS credentials from the default file, the environment or the EC2 instance profile
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	if obConfig.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(obConfig.Endpoint)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	timeout := obConfig.Timeout
	if timeout == 0 {
		// 3 minutes for all S3 calls, including the body transfer
		timeout = 180 * time.Second
	}
	cfg.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: obConfig.Insecure},
		},
	}

	// custom endpoints don't generally work with the bucket in the host prefix
	usePathStyle := obConfig.PathStyle || obConfig.Endpoint != ""
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
		// every attempt is one measured operation, failures surface to the worker
		o.Retryer = aws.NopRetryer{}
	})

	return &S3ObjectClient{
		delegate: s3Client,
		cfg:      obConfig,
	}, nil
}

func (c *S3ObjectClient) CreateBucket(ctx context.Context, bucket string) error {
	_, err := c.delegate.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	return classify("create bucket "+bucket, err)
}

func (c *S3ObjectClient) Put(ctx context.Context, bucket string, key string, body []byte) error {
	var result httpstat.Result
	ctx = httpstat.WithHTTPStat(ctx, &result)

	_, err := c.delegate.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return classify("put "+key, err)
	}
	c.report("put", key, result)
	return nil
}

// Get returns the object body. The caller drains and closes it.
func (c *S3ObjectClient) Get(ctx context.Context, bucket string, key string) (io.ReadCloser, error) {
	var result httpstat.Result
	ctx = httpstat.WithHTTPStat(ctx, &result)

	resp, err := c.delegate.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, classify("get "+key, err)
	}
	c.report("get", key, result)
	return resp.Body, nil
}

func (c *S3ObjectClient) ListObjectsPage(ctx context.Context, bucket string, prefix string, token string) (ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(maxPageSizeS3),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	resp, err := c.delegate.ListObjectsV2(ctx, input)
	if err != nil {
		return ListPage{}, classify("list "+prefix, err)
	}

	page := ListPage{Objects: make([]ObjectDescriptor, 0, len(resp.Contents))}
	for _, object := range resp.Contents {
		if object.Key == nil {
			continue
		}
		page.Objects = append(page.Objects, ObjectDescriptor{
			Key:  *object.Key,
			Size: aws.ToInt64(object.Size),
		})
	}
	page.NextToken = aws.ToString(resp.NextContinuationToken)
	return page, nil
}

func (c *S3ObjectClient) report(op string, key string, result httpstat.Result) {
	if c.cfg.OnLatency == nil {
		return
	}
	c.cfg.OnLatency(op, key, Latency{
		DNSLookup:        result.DNSLookup,
		TCPConnection:    result.TCPConnection,
		TLSHandshake:     result.TLSHandshake,
		ServerProcessing: result.ServerProcessing,
	})
}

// classify wraps dispatch failures into a TransportError and annotates
// service errors with their S3 error code.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return &TransportError{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransportError{Op: op, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
