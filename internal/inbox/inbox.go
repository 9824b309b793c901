// Package inbox turns documents dropped into an S3 bucket into document
// tasks, the same way a browser upload does.
package inbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ignite/event-etl/internal/document"
	"github.com/ignite/event-etl/internal/pkg/distlock"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

const (
	// DefaultInterval is the time between bucket scans.
	DefaultInterval = time.Minute

	// DefaultMaxObjects caps how many objects one scan picks up.
	DefaultMaxObjects = 100
)

// S3API is the subset of the S3 client the poller uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Dispatcher hands a saved document to the worker queue.
type Dispatcher interface {
	DispatchDocument(ctx context.Context, path, fileType string) (string, error)
}

// Config configures the poller.
type Config struct {
	Bucket     string
	Prefix     string
	UploadDir  string
	Interval   time.Duration
	MaxObjects int32
}

// Poller moves documents from a bucket prefix into the upload directory
// and dispatches a document task for each.
type Poller struct {
	client     S3API
	dispatcher Dispatcher
	cfg        Config
	lock       distlock.Lock
}

// New creates a poller. When lock is non-nil only the replica holding it
// scans the bucket on a given tick.
func New(client S3API, d Dispatcher, lock distlock.Lock, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxObjects <= 0 {
		cfg.MaxObjects = DefaultMaxObjects
	}
	return &Poller{client: client, dispatcher: d, cfg: cfg, lock: lock}
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for inbox: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Start scans the bucket every interval until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	logger.Info("[Inbox] polling", "bucket", p.cfg.Bucket, "prefix", p.cfg.Prefix, "interval", p.cfg.Interval)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Inbox] stopping")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	scan := func(ctx context.Context) error {
		n, err := p.Poll(ctx)
		if n > 0 {
			logger.Info("[Inbox] documents dispatched", "count", n)
		}
		return err
	}
	if p.lock == nil {
		if err := scan(ctx); err != nil {
			logger.Error("[Inbox] poll failed", "error", err)
		}
		return
	}
	if _, err := distlock.Do(ctx, p.lock, scan); err != nil {
		logger.Error("[Inbox] poll failed", "error", err)
	}
}

// Poll makes one pass over the prefix and returns how many documents were
// dispatched. An object is deleted from the bucket only after its task is
// queued; a failure leaves it for the next pass.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.cfg.Bucket),
		Prefix:  aws.String(p.cfg.Prefix),
		MaxKeys: aws.Int32(p.cfg.MaxObjects),
	})
	if err != nil {
		return 0, fmt.Errorf("S3 ListObjectsV2 %s/%s: %w", p.cfg.Bucket, p.cfg.Prefix, err)
	}

	dispatched := 0
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if key == "" || key[len(key)-1] == '/' {
			continue
		}
		if !document.AllowedExtension(key) {
			logger.Warn("[Inbox] ignoring object with unsupported extension", "key", key)
			continue
		}
		if err := p.take(ctx, key); err != nil {
			logger.Error("[Inbox] could not take object", "key", key, "error", err)
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

func (p *Poller) take(ctx context.Context, key string) error {
	local, err := p.download(ctx, key)
	if err != nil {
		return err
	}
	if _, err := p.dispatcher.DispatchDocument(ctx, local, document.FileType(key)); err != nil {
		os.Remove(local)
		return err
	}
	_, err = p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// The task is queued; a second pick-up only produces duplicates,
		// which the loader drops.
		logger.Warn("[Inbox] object dispatched but not deleted", "key", key, "error", err)
	}
	return nil
}

func (p *Poller) download(ctx context.Context, key string) (string, error) {
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("S3 GetObject %s/%s: %w", p.cfg.Bucket, key, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(p.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := uuid.NewString() + "_" + document.SanitizeFilename(path.Base(key))
	local := filepath.Join(p.cfg.UploadDir, name)

	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(local)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(local)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return local, nil
}
