package blob

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
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.body = string(b)
	}
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Put(t *testing.T) {
	fake := &fakeS3{}
	store := newS3WithClient(fake, S3Config{Bucket: "uploads", Region: "eu-west-1"})

	err := store.Put(context.Background(), "submissions/RWT-1/resume.pdf", "application/pdf", strings.NewReader("cv"))
	require.NoError(t, err)
	assert.Equal(t, "uploads", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "submissions/RWT-1/resume.pdf", aws.ToString(fake.in.Key))
	assert.Equal(t, "application/pdf", aws.ToString(fake.in.ContentType))
	assert.Equal(t, "cv", fake.body)
}

func TestS3PutError(t *testing.T) {
	store := newS3WithClient(&fakeS3{err: errors.New("denied")}, S3Config{Bucket: "uploads"})
	err := store.Put(context.Background(), "k", "text/plain", strings.NewReader("x"))
	assert.ErrorContains(t, err, "denied")
}

func TestS3URL(t *testing.T) {
	key := "submissions/RWT-1/photo.png"

	plain := newS3WithClient(&fakeS3{}, S3Config{Bucket: "uploads", Region: "eu-west-1"})
	assert.Equal(t, "https://uploads.s3.eu-west-1.amazonaws.com/"+key, plain.URL(key))

	minio := newS3WithClient(&fakeS3{}, S3Config{Bucket: "uploads", Endpoint: "http://localhost:9000/"})
	assert.Equal(t, "http://localhost:9000/uploads/"+key, minio.URL(key))

	cdn := newS3WithClient(&fakeS3{}, S3Config{Bucket: "uploads", PublicURL: "https://cdn.example.com/"})
	assert.Equal(t, "https://cdn.example.com/"+key, cdn.URL(key))
	assert.Equal(t, "https://cdn.example.com/a%20b/c", cdn.URL("a b/c"))
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestCloudinarySignature(t *testing.T) {
	c := NewCloudinary("demo", "key", "shh", "portal")
	sig := c.sign(map[string]string{
		"public_id": "portal/submissions/RWT-1/photo",
		"timestamp": "1700000000",
		"api_key":   "key",
	})
	assert.Equal(t, "02a887d544a21f28cc35b5414ae45e71cdfc7329", sig)
}

func TestCloudinaryPut(t *testing.T) {
	var gotPath string
	fields := map[string]string{}
	var fileBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		if f, _, err := r.FormFile("file"); assert.NoError(t, err) {
			b, _ := io.ReadAll(f)
			fileBody = string(b)
		}
		_, _ = w.Write([]byte(`{"public_id":"portal/submissions/RWT-1/photo","secure_url":"https://res.cloudinary.com/x"}`))
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "shh", "/portal/")
	c.APIBase = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	err := c.Put(context.Background(), "submissions/RWT-1/photo.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "/demo/image/upload", gotPath)
	assert.Equal(t, "portal/submissions/RWT-1/photo", fields["public_id"])
	assert.Equal(t, "key", fields["api_key"])
	assert.Equal(t, "02a887d544a21f28cc35b5414ae45e71cdfc7329", fields["signature"])
	assert.Equal(t, "png", fileBody)
}

func TestCloudinaryPutFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "shh", "")
	c.APIBase = srv.URL
	err := c.Put(context.Background(), "submissions/RWT-1/resume.docx", "application/msword", strings.NewReader("doc"))
	assert.ErrorContains(t, err, "Invalid Signature")
}

func TestCloudinaryURL(t *testing.T) {
	c := NewCloudinary("demo", "key", "shh", "portal")
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/portal/submissions/RWT-1/resume.pdf",
		c.URL("submissions/RWT-1/resume.pdf"))
	assert.Equal(t, "https://res.cloudinary.com/demo/raw/upload/portal/submissions/RWT-1/resume.docx",
		c.URL("submissions/RWT-1/resume.docx"))
	assert.Equal(t, "https://res.cloudinary.com/demo/raw/upload/portal/submissions/RWT-1/photo",
		c.URL("submissions/RWT-1/photo"))
}

func TestMemory(t *testing.T) {
	m := NewMemory("http://localhost:8081/")
	require.NoError(t, m.Put(context.Background(), "a/b.txt", "text/plain", strings.NewReader("hello")))

	obj, ok := m.Get("a/b.txt")
	require.True(t, ok)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, "hello", string(obj.Data))
	assert.Equal(t, "http://localhost:8081/files/a/b.txt", m.URL("a/b.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.Put(ctx, "c", "text/plain", strings.NewReader("x")))
	_, ok = m.Get("c")
	assert.False(t, ok)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), Config{Backend: "memory", MemoryBaseURL: "https://api.example.com"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	assert.Equal(t, "https://api.example.com/files/k", s.URL("k"))

	s, err = New(context.Background(), Config{Backend: "cloudinary", CloudinaryCloudName: "c", CloudinaryAPIKey: "k", CloudinaryAPISecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &Cloudinary{}, s)

	_, err = New(context.Background(), Config{Backend: "cloudinary"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Backend: "ftp"})
	assert.Error(t, err)
}
