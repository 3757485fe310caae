package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jschaub30/aws-demos/internal/logging"
)

type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// StoreError is returned when a job record could not be written.
type StoreError struct {
	JobID string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

type Store struct {
	ddb   DDBClient
	table string
	log   *slog.Logger
	now   func() time.Time
}

func NewStore(ddb DDBClient, table string, log *slog.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{
		ddb:   ddb,
		table: table,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create writes a new started record pointing at location.
func (s *Store) Create(ctx context.Context, jobID, location string, metadata map[string]any) error {
	rec := s.record(jobID, StatusStarted)
	rec.URL = location
	if len(metadata) > 0 {
		rec.Metadata = metadata
	}

	if err := s.put(ctx, rec); err != nil {
		s.log.Error("job create failed", slog.String("job_id", jobID), slog.Any("error", err))
		return &StoreError{JobID: jobID, Op: "create", Err: err}
	}
	s.log.Info("job created", slog.String("job_id", jobID), slog.String("url", location))
	return nil
}

// Update overwrites the record for jobID. URLs are kept only for a success
// status; otherwise Message is recorded when set.
func (s *Store) Update(ctx context.Context, jobID string, status Status, f Fields) error {
	rec := s.record(jobID, status)
	if status == StatusSuccess && len(f.URLs) > 0 {
		rec.URLs = f.URLs
	} else if f.Message != "" {
		rec.Message = f.Message
	}
	if len(f.Metadata) > 0 {
		rec.Metadata = f.Metadata
	}

	if err := s.put(ctx, rec); err != nil {
		s.log.Error("job update failed",
			slog.String("job_id", jobID),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
		return &StoreError{JobID: jobID, Op: "update", Err: err}
	}
	s.log.Info("job updated", slog.String("job_id", jobID), slog.String("status", string(status)))
	return nil
}

func (s *Store) record(jobID string, status Status) Record {
	now := s.now()
	return Record{
		JobID:     jobID,
		CreatedAt: now.Format(time.RFC3339Nano),
		Status:    status,
		TTL:       now.Add(Retention).Unix(),
	}
}

func (s *Store) put(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb PutItem: %w", err)
	}
	return nil
}
