package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/jschaub30/aws-demos/internal/jobs"
	"github.com/jschaub30/aws-demos/internal/logging"
)

// JobRow matches the Glue table columns. dt is the partition key and lives in
// the object path, not the file.
type JobRow struct {
	JobID     string   `parquet:"name=job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt string   `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status    string   `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	URL       string   `parquet:"name=url, type=BYTE_ARRAY, convertedtype=UTF8"`
	URLs      []string `parquet:"name=urls, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REPEATED"`
	Message   string   `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
	Metadata  string   `parquet:"name=metadata, type=BYTE_ARRAY, convertedtype=UTF8"` // JSON
	TTL       int64    `parquet:"name=ttl, type=INT64"`
}

func NewJobRow(r jobs.Record) JobRow {
	row := JobRow{
		JobID:     r.JobID,
		CreatedAt: r.CreatedAt,
		Status:    string(r.Status),
		URL:       r.URL,
		URLs:      r.URLs,
		Message:   r.Message,
		TTL:       r.TTL,
	}
	if len(r.Metadata) > 0 {
		b, _ := json.Marshal(r.Metadata)
		row.Metadata = string(b)
	}
	return row
}

type Scanner interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ExportClients struct {
	DDB    Scanner
	S3     ObjectPutter
	Glue   GlueClient
	Athena AthenaClient
}

type ExportOptions struct {
	JobsTable    string
	GlueDatabase string
	ExportTable  string
	Workgroup    string
	AthenaOutput string
	DaysBack     int
	RepairWait   time.Duration
	RepairPoll   time.Duration
}

type ExportSummary struct {
	OK            bool   `json:"ok"`
	DaysBack      int    `json:"days_back"`
	Files         int    `json:"files"`
	Records       int    `json:"records"`
	Location      string `json:"location"`
	RepairQueryID string `json:"repair_query_id,omitempty"`
}

// JobsExporter copies job records into the analytics table, one Parquet file
// per created_at day.
type JobsExporter struct {
	c   ExportClients
	opt ExportOptions
	log *slog.Logger
	now func() time.Time
}

func NewJobsExporter(c ExportClients, opt ExportOptions, log *slog.Logger) *JobsExporter {
	if log == nil {
		log = logging.Discard()
	}
	if opt.DaysBack <= 0 {
		opt.DaysBack = 1
	}
	return &JobsExporter{
		c:   c,
		opt: opt,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Handle is triggered by an EventBridge schedule. DaysBack counts days
// including today (UTC). Re-running a day overwrites its file.
func (e *JobsExporter) Handle(ctx context.Context, _ events.CloudWatchEvent) (ExportSummary, error) {
	loc, err := LookupTableLocation(ctx, e.c.Glue, e.opt.GlueDatabase, e.opt.ExportTable)
	if err != nil {
		return ExportSummary{}, err
	}

	summary := ExportSummary{DaysBack: e.opt.DaysBack, Location: loc.String()}
	now := e.now()
	for i := 0; i < e.opt.DaysBack; i++ {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")

		records, err := e.recordsForDay(ctx, day)
		if err != nil {
			return summary, fmt.Errorf("scan jobs for dt=%s: %w", day, err)
		}
		if len(records) == 0 {
			e.log.Info("no jobs to export", slog.String("dt", day))
			continue
		}

		rows := make([]JobRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, NewJobRow(r))
		}
		key := PartitionKey(loc.Prefix, day)
		if err := e.writeParquet(ctx, loc.Bucket, key, rows); err != nil {
			return summary, fmt.Errorf("write parquet for dt=%s: %w", day, err)
		}
		e.log.Info("jobs exported", slog.String("dt", day), slog.Int("records", len(rows)), slog.String("key", key))

		summary.Files++
		summary.Records += len(rows)
	}

	if summary.Files > 0 {
		qid, err := RepairPartitions(ctx, e.c.Athena, RepairOptions{
			Database:     e.opt.GlueDatabase,
			Table:        e.opt.ExportTable,
			Workgroup:    e.opt.Workgroup,
			Output:       e.opt.AthenaOutput,
			MaxWait:      e.opt.RepairWait,
			PollInterval: e.opt.RepairPoll,
		})
		summary.RepairQueryID = qid
		if err != nil {
			return summary, fmt.Errorf("repair partitions: %w", err)
		}
	}

	summary.OK = true
	return summary, nil
}

// PartitionKey names the file for one day. The name is derived from the day
// so that a rerun replaces the earlier export.
func PartitionKey(prefix, day string) string {
	sum := sha256.Sum256([]byte(day))
	return fmt.Sprintf("%sdt=%s/part-%s.parquet", prefix, day, hex.EncodeToString(sum[:8]))
}

// recordsForDay scans the jobs table for records written on day. created_at
// is RFC3339, so begins_with("YYYY-MM-DD") selects the UTC day.
func (e *JobsExporter) recordsForDay(ctx context.Context, day string) ([]jobs.Record, error) {
	var (
		out      []jobs.Record
		startKey map[string]ddbtypes.AttributeValue
	)
	for {
		page, err := e.c.DDB.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(e.opt.JobsTable),
			ExclusiveStartKey: startKey,
			FilterExpression:  aws.String("begins_with(#createdAt, :day)"),
			ExpressionAttributeNames: map[string]string{
				"#createdAt": "created_at",
			},
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":day": &ddbtypes.AttributeValueMemberS{Value: day},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan %s: %w", e.opt.JobsTable, err)
		}

		var recs []jobs.Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal jobs: %w", err)
		}
		out = append(out, recs...)

		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	return out, nil
}

func (e *JobsExporter) writeParquet(ctx context.Context, bucket, key string, rows []JobRow) error {
	localPath := filepath.Join(os.TempDir(), "jobs_"+randHex(8)+".parquet")
	defer func() { _ = os.Remove(localPath) }()

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(JobRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("parquet write row %s: %w", row.JobID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read parquet tmp: %w", err)
	}

	_, err = e.c.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 PutObject: %w", err)
	}
	return nil
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
