// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// S3Config configures the object store sink.
type S3Config struct {
	Bucket          string `koanf:"bucket"`
	Prefix          string `koanf:"prefix"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`

	// RequestsPerSecond paces calls against provider rate limits.
	// Zero disables pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// S3API is the subset of the S3 client used by the sink. Narrowed for tests.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores blobs as objects under a key prefix in an S3-compatible bucket.
//
// All calls pass through a circuit breaker so that a flapping endpoint trips
// open instead of hammering the provider; an open breaker surfaces as a
// transient failure so the retry controller backs off rather than giving up.
type S3 struct {
	client  S3API
	bucket  string
	prefix  string
	breaker *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
}

// NewS3 builds the object store sink from configuration. When explicit
// credentials are absent the default AWS credential chain applies. A custom
// endpoint enables path-style addressing for S3-compatible services.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: bucket is required")
	}

	var awsCfg aws.Config
	var err error

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(creds),
			awsconfig.WithRegion(cfg.Region),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("s3 sink: load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for most S3-compatible services
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return NewS3WithClient(client, cfg), nil
}

// NewS3WithClient wires the sink around an existing client. Used by tests.
func NewS3WithClient(client S3API, cfg S3Config) *S3 {
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "s3-sink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.TrimSuffix(cfg.Prefix, "/"),
		breaker: breaker,
		limiter: limiter,
	}
}

// Kind returns KindS3.
func (s *S3) Kind() Kind { return KindS3 }

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// call runs op through the rate limiter and circuit breaker, classifying the
// resulting error.
func (s *S3) call(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, NewTerminal(op, err)
		}
	}

	out, err := s.breaker.Execute(fn)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, NewTransient(op, err)
	}
	return nil, classifyS3Error(op, err)
}

// Write stores data under name.
func (s *S3) Write(ctx context.Context, name string, data []byte) error {
	_, err := s.call(ctx, "write", func() (any, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(name)),
			Body:   bytes.NewReader(data),
		})
	})
	return err
}

// List returns every stored blob under the sink's prefix. Pagination is
// handled manually so the narrowed client interface stays mockable.
func (s *S3) List(ctx context.Context) ([]BlobInfo, error) {
	var blobs []BlobInfo
	var continuation *string

	for {
		out, err := s.call(ctx, "list", func() (any, error) {
			return s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucket),
				Prefix:            aws.String(s.prefix),
				ContinuationToken: continuation,
			})
		})
		if err != nil {
			return nil, err
		}

		page := out.(*s3.ListObjectsV2Output)
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if s.prefix != "" {
				name = strings.TrimPrefix(name, s.prefix+"/")
			}
			if !IsBlobName(name) {
				continue
			}

			created, ok := BlobTime(name)
			if !ok && obj.LastModified != nil {
				created = *obj.LastModified
			}

			blobs = append(blobs, BlobInfo{
				Name:      name,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: created,
			})
		}

		if page.NextContinuationToken == nil {
			return blobs, nil
		}
		continuation = page.NextContinuationToken
	}
}

// Read fetches a blob's contents.
func (s *S3) Read(ctx context.Context, name string) ([]byte, error) {
	out, err := s.call(ctx, "read", func() (any, error) {
		return s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(name)),
		})
	})
	if err != nil {
		return nil, err
	}

	obj := out.(*s3.GetObjectOutput)
	defer obj.Body.Close() //nolint:errcheck // Read error is the one that matters

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, NewTransient("read", err)
	}
	return data, nil
}

// Delete removes a blob. Objects are deleted one at a time for compatibility
// with MinIO and other S3 workalikes that reject bulk deletes.
func (s *S3) Delete(ctx context.Context, name string) error {
	_, err := s.call(ctx, "delete", func() (any, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(name)),
		})
	})
	return err
}

// transientS3Codes are provider error codes that indicate a retryable
// condition. Everything else from the API is terminal (auth, missing key,
// quota policy).
var transientS3Codes = map[string]bool{
	"RequestTimeout":      true,
	"Throttling":          true,
	"ThrottlingException": true,
	"SlowDown":            true,
	"ServiceUnavailable":  true,
	"InternalError":       true,
}

func classifyS3Error(op string, err error) *Error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" {
			return NewTerminal(op, ErrNotFound)
		}
		if transientS3Codes[code] {
			return NewTransient(op, err)
		}
		return NewTerminal(op, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewTerminal(op, err)
	}

	// Connection-level failures (DNS, refused, reset) arrive as plain
	// transport errors and are worth retrying.
	return NewTransient(op, err)
}
