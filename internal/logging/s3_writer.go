package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/anronharry/TG-bot/internal/utils"
)

// S3WriterConfig locates the audit bucket
type S3WriterConfig struct {
	Bucket  string
	Region  string
	Prefix  string
	PodName string
	// Endpoint overrides the S3 endpoint (MinIO and other compatible stores).
	// Path-style addressing is used when it is set.
	Endpoint string
}

// S3Writer handles writing batches of turn records to S3
type S3Writer struct {
	client  *s3.Client
	bucket  string
	prefix  string
	podName string
	logger  *utils.Logger
	now     func() time.Time
}

// NewS3Writer creates a new S3 writer
func NewS3Writer(ctx context.Context, cfg S3WriterConfig) (*S3Writer, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Writer{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		podName: cfg.PodName,
		logger:  utils.NewLogger("s3-writer"),
		now:     time.Now,
	}, nil
}

// objectKey renders <prefix>YYYY/MM/DD/<pod>-<YYYYMMDD-HHMMSS>-<ns>.jsonl
func objectKey(prefix, podName string, now time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		podName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)
}

// encodeJSONLines renders records one JSON object per line, skipping any
// that fail to encode
func encodeJSONLines(records []*TurnRecord, logger *utils.Logger) *bytes.Buffer {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			logger.Error("Failed to encode record", "error", err)
		}
	}
	return &buf
}

// WriteBatch writes a batch of turn records to S3 as a JSON Lines file.
// Returns the S3 key where the data was written.
func (w *S3Writer) WriteBatch(ctx context.Context, records []*TurnRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	now := time.Now()
	if w.now != nil {
		now = w.now()
	}
	key := objectKey(w.prefix, w.podName, now.UTC())
	buf := encodeJSONLines(records, w.logger)

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	w.logger.Info("Wrote batch to S3", "key", key, "count", len(records), "bytes", buf.Len())
	return key, nil
}
