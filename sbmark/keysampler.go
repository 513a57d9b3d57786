package sbmark

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lumafield/s3-loadgen/obmark"
)

// Sleeper pauses the calling worker. It returns early with ctx.Err() on cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// KeySampler picks a random existing key below a prefix by listing all of it.
type KeySampler struct {
	client obmark.ObjectClient
	rnd    *rand.Rand
	policy RetryPolicy
	sleep  Sleeper
	sink   ErrorSink
	log    logrus.FieldLogger
	worker int
}

// Sample lists the prefix until it holds at least one object and returns one
// of the keys uniformly at random. An empty or failed listing pass is retried
// after policy.Backoff, at most policy.MaxEmptyListings times when that is set.
func (s *KeySampler) Sample(ctx context.Context, bucket string, prefix string) (string, error) {
	for retries := 0; ; retries++ {
		objects, err := s.listAll(ctx, bucket, prefix)
		if err != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err == nil && len(objects) > 0 {
			return objects[s.rnd.IntN(len(objects))].Key, nil
		}
		if s.policy.MaxEmptyListings > 0 && retries >= s.policy.MaxEmptyListings {
			if err != nil {
				return "", fmt.Errorf("%w: last listing failed: %w", ErrEmptyListing, err)
			}
			return "", ErrEmptyListing
		}
		log := s.log.WithField("prefix", prefix)
		if err != nil {
			log.Debugf("listing failed, retrying in %v", s.policy.Backoff)
		} else {
			log.Debugf("no objects yet, retrying in %v", s.policy.Backoff)
		}
		if err := s.sleep(ctx, s.policy.Backoff); err != nil {
			return "", err
		}
	}
}

// listAll follows continuation tokens until the last page. Transport failures
// re-issue the same page, any other error aborts the pass.
func (s *KeySampler) listAll(ctx context.Context, bucket string, prefix string) ([]obmark.ObjectDescriptor, error) {
	var (
		objects  []obmark.ObjectDescriptor
		token    string
		failures int
	)
	for {
		page, err := s.client.ListObjectsPage(ctx, bucket, prefix, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.sink.Report(ErrorEvent{
				Op:     OpGet,
				Phase:  "list",
				Worker: s.worker,
				Key:    prefix,
				Kind:   kindOf(err),
				Err:    err,
			})
			if obmark.IsTransport(err) {
				failures++
				if s.policy.MaxPageRetries == 0 || failures <= s.policy.MaxPageRetries {
					continue
				}
			}
			return nil, err
		}
		failures = 0
		objects = append(objects, page.Objects...)
		if page.NextToken == "" {
			return objects, nil
		}
		token = page.NextToken
	}
}
