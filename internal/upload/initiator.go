package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/jschaub30/aws-demos/internal/contenttype"
	"github.com/jschaub30/aws-demos/internal/jobs"
	"github.com/jschaub30/aws-demos/internal/logging"
)

const (
	// PresignExpiry bounds how long a client may use an upload URL.
	PresignExpiry = time.Hour
	KeyPrefix     = "input/"
	jobIDLength   = 8
)

type JobStore interface {
	Create(ctx context.Context, jobID, location string, metadata map[string]any) error
	Update(ctx context.Context, jobID string, status jobs.Status, f jobs.Fields) error
}

type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type TypeResolver interface {
	Resolve(ctx context.Context, sourceURL string) string
}

// Request is a decoded intake body. Either Filename (with ContentType) or
// SourceURL selects the path; JobID is optional.
type Request struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SourceURL   string `json:"source_url"`
	JobID       string `json:"job_id"`
}

type Result struct {
	PresignedURL string `json:"presigned_url,omitempty"`
	JobID        string `json:"job_id"`
	ObjectKey    string `json:"-"`
}

type Options struct {
	Bucket     string
	Store      JobStore
	Presigner  Presigner
	Objects    ObjectPutter
	Resolver   TypeResolver
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Initiator establishes a job and either hands out a presigned upload URL or
// copies a remote file into the bucket itself.
type Initiator struct {
	bucket    string
	store     JobStore
	presigner Presigner
	objects   ObjectPutter
	resolver  TypeResolver
	http      *http.Client
	log       *slog.Logger
	newID     func() string
}

func NewInitiator(opt Options) *Initiator {
	i := &Initiator{
		bucket:    opt.Bucket,
		store:     opt.Store,
		presigner: opt.Presigner,
		objects:   opt.Objects,
		resolver:  opt.Resolver,
		http:      opt.HTTPClient,
		log:       opt.Logger,
		newID:     NewJobID,
	}
	if i.log == nil {
		i.log = logging.Discard()
	}
	if i.http == nil {
		i.http = &http.Client{}
	}
	if i.resolver == nil {
		i.resolver = contenttype.NewResolver(i.http, i.log)
	}
	return i
}

// NewJobID returns a short random token.
func NewJobID() string {
	return uuid.NewString()[:jobIDLength]
}

// Start handles the full intake: presigned upload when a filename is given,
// otherwise a server-side fetch of source_url.
func (i *Initiator) Start(ctx context.Context, req Request) (*Result, error) {
	req = trim(req)
	switch {
	case req.Filename != "":
		if req.ContentType == "" {
			return nil, validationError("Must provide 'content_type' with 'filename'")
		}
		return i.presign(ctx, req, i.jobID(req))
	case req.SourceURL != "":
		fname, err := sourceFilename(req.SourceURL)
		if err != nil {
			return nil, err
		}
		return i.fetch(ctx, req, i.jobID(req), fname)
	default:
		return nil, validationError("Must provide 'filename' and 'content_type' OR 'source_url' in body")
	}
}

// Presign handles the presign-only entry point, which never fetches.
func (i *Initiator) Presign(ctx context.Context, req Request) (*Result, error) {
	req = trim(req)
	if req.Filename == "" || req.ContentType == "" {
		return nil, validationError("Must provide 'filename' and 'content_type' in body")
	}
	return i.presign(ctx, req, i.jobID(req))
}

// ObjectKey is the bucket key for a file belonging to jobID.
func ObjectKey(jobID, filename string) string {
	return KeyPrefix + jobID + "/" + filename
}

func (i *Initiator) presign(ctx context.Context, req Request, jobID string) (*Result, error) {
	key := ObjectKey(jobID, req.Filename)
	log := i.log.With(slog.String("job_id", jobID), slog.String("key", key))

	if err := i.store.Create(ctx, jobID, i.location(key), map[string]any{"content_type": req.ContentType}); err != nil {
		return nil, err
	}

	out, err := i.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		log.Error("presign failed", slog.Any("error", err))
		return nil, i.fail(ctx, jobID, KindUpstream, fmt.Sprintf("Error generating presigned URL: %v", err), err)
	}

	log.Info("presigned upload url issued")
	return &Result{PresignedURL: out.URL, JobID: jobID, ObjectKey: key}, nil
}

func (i *Initiator) fetch(ctx context.Context, req Request, jobID, fname string) (*Result, error) {
	key := ObjectKey(jobID, fname)
	log := i.log.With(slog.String("job_id", jobID), slog.String("key", key))

	if err := i.store.Create(ctx, jobID, i.location(key), map[string]any{"source_url": req.SourceURL}); err != nil {
		return nil, err
	}

	contentType := i.resolver.Resolve(ctx, req.SourceURL)

	body, err := i.download(ctx, req.SourceURL)
	if err != nil {
		log.Error("download failed", slog.Any("error", err))
		return nil, i.fail(ctx, jobID, KindFetch, fmt.Sprintf("Error downloading file from %s: %v", req.SourceURL, err), err)
	}
	if len(body) == 0 {
		log.Error("download returned no content")
		return nil, i.fail(ctx, jobID, KindFetch, fmt.Sprintf("Error downloading file from %s: no content", req.SourceURL), nil)
	}

	_, err = i.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Error("upload failed", slog.Any("error", err))
		return nil, i.fail(ctx, jobID, KindUpstream, fmt.Sprintf("Error uploading file to %s: %v", i.location(key), err), err)
	}

	log.Info("source copied to bucket", slog.String("content_type", contentType), slog.Int("bytes", len(body)))
	return &Result{JobID: jobID, ObjectKey: key}, nil
}

func (i *Initiator) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := i.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", res.StatusCode)
	}
	return io.ReadAll(res.Body)
}

// fail marks the job as errored and returns the client-facing error. A store
// failure here wins, since the record can no longer be trusted.
func (i *Initiator) fail(ctx context.Context, jobID string, kind Kind, msg string, cause error) error {
	if err := i.store.Update(ctx, jobID, jobs.StatusError, jobs.Fields{Message: msg}); err != nil {
		return err
	}
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func (i *Initiator) jobID(req Request) string {
	if req.JobID != "" {
		return req.JobID
	}
	return i.newID()
}

func (i *Initiator) location(key string) string {
	return fmt.Sprintf("s3://%s/%s", i.bucket, key)
}

func trim(req Request) Request {
	req.Filename = strings.TrimSpace(req.Filename)
	req.ContentType = strings.TrimSpace(req.ContentType)
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	req.JobID = strings.TrimSpace(req.JobID)
	return req
}

func sourceFilename(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", validationError("'source_url' must be an absolute http(s) URL")
	}
	fname := contenttype.Filename(sourceURL)
	if u.Path == "" || strings.HasSuffix(u.Path, "/") || fname == "" {
		return "", validationError("'source_url' must name a file")
	}
	return fname, nil
}
