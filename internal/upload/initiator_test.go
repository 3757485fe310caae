package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jschaub30/aws-demos/internal/jobs"
)

type recorder struct {
	events []string
}

type createCall struct {
	jobID, location string
	metadata        map[string]any
}

type updateCall struct {
	jobID  string
	status jobs.Status
	fields jobs.Fields
}

type fakeStore struct {
	rec       *recorder
	creates   []createCall
	updates   []updateCall
	createErr error
	updateErr error
}

func (f *fakeStore) Create(_ context.Context, jobID, location string, metadata map[string]any) error {
	f.rec.events = append(f.rec.events, "create")
	f.creates = append(f.creates, createCall{jobID, location, metadata})
	if f.createErr != nil {
		return &jobs.StoreError{JobID: jobID, Op: "create", Err: f.createErr}
	}
	return nil
}

func (f *fakeStore) Update(_ context.Context, jobID string, status jobs.Status, fields jobs.Fields) error {
	f.rec.events = append(f.rec.events, "update")
	f.updates = append(f.updates, updateCall{jobID, status, fields})
	if f.updateErr != nil {
		return &jobs.StoreError{JobID: jobID, Op: "update", Err: f.updateErr}
	}
	return nil
}

type fakePresigner struct {
	rec     *recorder
	inputs  []*s3.PutObjectInput
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.rec.events = append(f.rec.events, "presign")
	f.inputs = append(f.inputs, in)
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + aws.ToString(in.Bucket) + ".s3.amazonaws.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=sig",
		Method: http.MethodPut,
	}, nil
}

type fakeObjects struct {
	rec    *recorder
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.rec.events = append(f.rec.events, "put")
	f.inputs = append(f.inputs, in)
	b, _ := io.ReadAll(in.Body)
	f.bodies = append(f.bodies, string(b))
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

type fixture struct {
	rec       *recorder
	store     *fakeStore
	presigner *fakePresigner
	objects   *fakeObjects
	init      *Initiator
}

func newFixture(client *http.Client) *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:       rec,
		store:     &fakeStore{rec: rec},
		presigner: &fakePresigner{rec: rec},
		objects:   &fakeObjects{rec: rec},
	}
	f.init = NewInitiator(Options{
		Bucket:     "demo-input",
		Store:      f.store,
		Presigner:  f.presigner,
		Objects:    f.objects,
		HTTPClient: client,
	})
	f.init.newID = func() string { return "gen12345" }
	return f
}

func TestStart_PresignGeneratesJobID(t *testing.T) {
	f := newFixture(nil)

	res, err := f.init.Start(context.Background(), Request{Filename: "resume.pdf", ContentType: "application/pdf"})
	require.NoError(t, err)

	assert.Equal(t, "gen12345", res.JobID)
	assert.Equal(t, "input/gen12345/resume.pdf", res.ObjectKey)
	assert.Contains(t, res.PresignedURL, "input/gen12345/resume.pdf")

	require.Len(t, f.store.creates, 1)
	assert.Equal(t, "s3://demo-input/input/gen12345/resume.pdf", f.store.creates[0].location)
	assert.Equal(t, []string{"create", "presign"}, f.rec.events, "job exists before the credential is issued")
	assert.Empty(t, f.store.updates)

	require.Len(t, f.presigner.inputs, 1)
	in := f.presigner.inputs[0]
	assert.Equal(t, "demo-input", aws.ToString(in.Bucket))
	assert.Equal(t, "input/gen12345/resume.pdf", aws.ToString(in.Key))
	assert.Equal(t, "application/pdf", aws.ToString(in.ContentType))
	assert.Equal(t, time.Hour, f.presigner.expires)
}

func TestStart_PresignSameJobIDIsIdempotent(t *testing.T) {
	f := newFixture(nil)
	req := Request{Filename: "resume.pdf", ContentType: "application/pdf", JobID: "client01"}

	first, err := f.init.Start(context.Background(), req)
	require.NoError(t, err)
	second, err := f.init.Start(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "input/client01/resume.pdf", first.ObjectKey)
	assert.Equal(t, first.ObjectKey, second.ObjectKey)
	require.Len(t, f.store.creates, 2)
	assert.Equal(t, f.store.creates[0].jobID, f.store.creates[1].jobID)
	assert.Equal(t, f.store.creates[0].location, f.store.creates[1].location)
}

func TestStart_BlankJobIDIsGenerated(t *testing.T) {
	f := newFixture(nil)

	res, err := f.init.Start(context.Background(), Request{Filename: "a.png", ContentType: "image/png", JobID: "   "})
	require.NoError(t, err)
	assert.Equal(t, "gen12345", res.JobID)
}

func TestStart_PresignFailureMarksJobError(t *testing.T) {
	f := newFixture(nil)
	f.presigner.err = errors.New("credentials expired")

	res, err := f.init.Start(context.Background(), Request{Filename: "resume.pdf", ContentType: "application/pdf"})
	require.Error(t, err)
	assert.Nil(t, res)

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, e.Kind)
	assert.Equal(t, http.StatusInternalServerError, e.StatusCode())
	assert.Contains(t, e.Message, "Error generating presigned URL")
	assert.Contains(t, e.Message, "credentials expired")

	require.Len(t, f.store.updates, 1)
	assert.Equal(t, jobs.StatusError, f.store.updates[0].status)
	assert.Equal(t, e.Message, f.store.updates[0].fields.Message)
	assert.Equal(t, []string{"create", "presign", "update"}, f.rec.events)
}

func TestStart_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		message string
	}{
		{
			name:    "empty body",
			req:     Request{},
			message: "OR 'source_url'",
		},
		{
			name:    "only content type",
			req:     Request{ContentType: "image/png"},
			message: "OR 'source_url'",
		},
		{
			name:    "filename without content type",
			req:     Request{Filename: "a.png"},
			message: "'content_type'",
		},
		{
			name:    "relative source url",
			req:     Request{SourceURL: "photos/a.png"},
			message: "absolute http(s) URL",
		},
		{
			name:    "unsupported scheme",
			req:     Request{SourceURL: "ftp://example.com/a.png"},
			message: "absolute http(s) URL",
		},
		{
			name:    "source url without file",
			req:     Request{SourceURL: "https://example.com/photos/"},
			message: "must name a file",
		},
		{
			name:    "source url without path",
			req:     Request{SourceURL: "https://example.com"},
			message: "must name a file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)

			_, err := f.init.Start(context.Background(), tt.req)
			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindValidation, e.Kind)
			assert.Equal(t, http.StatusBadRequest, e.StatusCode())
			assert.Contains(t, e.Message, tt.message)
			assert.Empty(t, f.rec.events, "no job is created for invalid input")
		})
	}
}

func TestStart_FilenameWinsOverSourceURL(t *testing.T) {
	f := newFixture(nil)

	res, err := f.init.Start(context.Background(), Request{
		Filename:    "a.png",
		ContentType: "image/png",
		SourceURL:   "https://example.com/b.png",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.PresignedURL)
	assert.Empty(t, f.objects.inputs)
}

func sourceServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStart_FetchCopiesSource(t *testing.T) {
	srv := sourceServer(t, http.StatusOK, "\xff\xd8\xff jpeg bytes")
	f := newFixture(srv.Client())
	source := srv.URL + "/images/photo.jpg?sig=abc"

	res, err := f.init.Start(context.Background(), Request{SourceURL: source})
	require.NoError(t, err)

	assert.Equal(t, "gen12345", res.JobID)
	assert.Empty(t, res.PresignedURL)
	assert.Equal(t, "input/gen12345/photo.jpg", res.ObjectKey)

	require.Len(t, f.store.creates, 1)
	assert.Equal(t, "s3://demo-input/input/gen12345/photo.jpg", f.store.creates[0].location)
	assert.Equal(t, source, f.store.creates[0].metadata["source_url"])

	require.Len(t, f.objects.inputs, 1)
	in := f.objects.inputs[0]
	assert.Equal(t, "demo-input", aws.ToString(in.Bucket))
	assert.Equal(t, "input/gen12345/photo.jpg", aws.ToString(in.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(in.ContentType))
	assert.Equal(t, "\xff\xd8\xff jpeg bytes", f.objects.bodies[0])

	assert.Empty(t, f.store.updates)
	assert.Equal(t, []string{"create", "put"}, f.rec.events)
}

type staticResolver string

func (s staticResolver) Resolve(context.Context, string) string { return string(s) }

func TestStart_FetchUsesResolver(t *testing.T) {
	srv := sourceServer(t, http.StatusOK, "col1,col2\n")
	f := newFixture(srv.Client())
	f.init.resolver = staticResolver("text/csv")

	_, err := f.init.Start(context.Background(), Request{SourceURL: srv.URL + "/export", JobID: "job-7"})
	require.NoError(t, err)

	require.Len(t, f.objects.inputs, 1)
	assert.Equal(t, "text/csv", aws.ToString(f.objects.inputs[0].ContentType))
	assert.Equal(t, "input/job-7/export", aws.ToString(f.objects.inputs[0].Key))
}

func TestStart_FetchFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		putErr   error
		kind     Kind
		message  string
		wantPuts int
	}{
		{
			name:    "empty content",
			status:  http.StatusOK,
			body:    "",
			kind:    KindFetch,
			message: "no content",
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    "missing",
			kind:    KindFetch,
			message: "http 404",
		},
		{
			name:     "upload failure",
			status:   http.StatusOK,
			body:     "data",
			putErr:   errors.New("access denied"),
			kind:     KindUpstream,
			message:  "access denied",
			wantPuts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := sourceServer(t, tt.status, tt.body)
			f := newFixture(srv.Client())
			f.objects.err = tt.putErr

			_, err := f.init.Start(context.Background(), Request{SourceURL: srv.URL + "/doc.pdf"})
			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, http.StatusInternalServerError, e.StatusCode())
			assert.Contains(t, e.Message, tt.message)

			assert.Len(t, f.objects.inputs, tt.wantPuts)
			require.Len(t, f.store.updates, 1)
			assert.Equal(t, jobs.StatusError, f.store.updates[0].status)
			assert.Equal(t, e.Message, f.store.updates[0].fields.Message)
		})
	}
}

func TestStart_FetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	source := srv.URL + "/gone.txt"
	srv.Close()

	f := newFixture(nil)
	_, err := f.init.Start(context.Background(), Request{SourceURL: source})

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindFetch, e.Kind)
	assert.True(t, strings.HasPrefix(e.Message, "Error downloading file from "+source))
	assert.Len(t, f.store.updates, 1)
}

func TestStart_StoreErrorsPropagate(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		f := newFixture(nil)
		f.store.createErr = errors.New("table missing")

		_, err := f.init.Start(context.Background(), Request{Filename: "a.png", ContentType: "image/png"})
		var serr *jobs.StoreError
		require.ErrorAs(t, err, &serr)
		_, ok := AsError(err)
		assert.False(t, ok, "store failures are not client-facing")
		assert.Equal(t, []string{"create"}, f.rec.events)
	})

	t.Run("update after failure", func(t *testing.T) {
		f := newFixture(nil)
		f.presigner.err = errors.New("boom")
		f.store.updateErr = errors.New("throttled")

		_, err := f.init.Start(context.Background(), Request{Filename: "a.png", ContentType: "image/png"})
		var serr *jobs.StoreError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "update", serr.Op)
	})
}

func TestPresign(t *testing.T) {
	t.Run("requires filename and content type", func(t *testing.T) {
		f := newFixture(nil)

		_, err := f.init.Presign(context.Background(), Request{SourceURL: "https://example.com/a.png"})
		e, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindValidation, e.Kind)
		assert.Empty(t, f.rec.events)
	})

	t.Run("issues url", func(t *testing.T) {
		f := newFixture(nil)

		res, err := f.init.Presign(context.Background(), Request{Filename: "clip.mp4", ContentType: "video/mp4", JobID: "abc"})
		require.NoError(t, err)
		assert.Equal(t, "abc", res.JobID)
		assert.Equal(t, "input/abc/clip.mp4", res.ObjectKey)
		assert.Equal(t, []string{"create", "presign"}, f.rec.events)
	})
}

func TestNewJobID(t *testing.T) {
	a, b := NewJobID(), NewJobID()
	assert.Len(t, a, 8)
	assert.Len(t, b, 8)
	assert.NotEqual(t, a, b)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "upstream", KindUpstream.String())
	assert.Equal(t, "fetch", KindFetch.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestConfigurationError(t *testing.T) {
	e := ConfigurationError(errors.New("missing env BUCKET_NAME"))
	assert.Equal(t, KindConfiguration, e.Kind)
	assert.Equal(t, http.StatusInternalServerError, e.StatusCode())
	assert.Equal(t, "missing env BUCKET_NAME", e.Error())
}
