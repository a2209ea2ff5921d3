package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mohammad-safakhou/glpisum/config"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestUploadFile(t *testing.T) {
	fake := &fakePutter{}
	u := NewUploaderWithClient(fake, "reports", nil, nil)
	path := writeTemp(t, "glpi_ticket_5.pdf", "%PDF-1.3 body")

	if err := u.UploadFile(context.Background(), path, "custom/key.pdf"); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if aws.ToString(fake.input.Bucket) != "reports" || aws.ToString(fake.input.Key) != "custom/key.pdf" {
		t.Fatalf("unexpected input %+v", fake.input)
	}
	if aws.ToString(fake.input.ContentType) != "application/pdf" {
		t.Fatalf("unexpected content type %q", aws.ToString(fake.input.ContentType))
	}
	if aws.ToInt64(fake.input.ContentLength) != int64(len("%PDF-1.3 body")) || string(fake.body) != "%PDF-1.3 body" {
		t.Fatalf("unexpected body %q", fake.body)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("UploadFile must leave the local file in place: %v", err)
	}
}

func TestUploadFileMissing(t *testing.T) {
	fake := &fakePutter{}
	u := NewUploaderWithClient(fake, "reports", nil, nil)
	if err := u.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "nope.pdf"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if fake.input != nil {
		t.Fatalf("no request expected")
	}
}

func TestPublishRemovesFileOnSuccess(t *testing.T) {
	fake := &fakePutter{}
	u := NewUploaderWithClient(fake, "reports", nil, nil)
	path := writeTemp(t, "glpi_ticket_9.pdf", "x")

	if err := u.Publish(context.Background(), path); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if aws.ToString(fake.input.Key) != "glpi_ticket_9.pdf" {
		t.Fatalf("expected key to be the base name, got %q", aws.ToString(fake.input.Key))
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected local file removed, stat err = %v", err)
	}
}

func TestPublishRemovesFileOnFailure(t *testing.T) {
	boom := errors.New("access denied")
	u := NewUploaderWithClient(&fakePutter{err: boom}, "reports", nil, nil)
	path := writeTemp(t, "glpi_ticket_9.pdf", "x")

	if err := u.Publish(context.Background(), path); !errors.Is(err, boom) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected local file removed, stat err = %v", err)
	}
}

func TestNewUploaderValidates(t *testing.T) {
	ctx := context.Background()
	if _, err := NewUploader(ctx, config.S3Config{}, nil, nil); !errors.Is(err, ErrBucketRequired) {
		t.Fatalf("expected ErrBucketRequired, got %v", err)
	}
	if _, err := NewUploader(ctx, config.S3Config{Bucket: "b", AccessKeyID: "only-id"}, nil, nil); err == nil {
		t.Fatalf("expected error for half-configured credentials")
	}
	u, err := NewUploader(ctx, config.S3Config{
		Bucket:          "b",
		Endpoint:        "https://s3.wasabisys.com",
		Region:          "us-east-1",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	if u.Bucket() != "b" {
		t.Fatalf("unexpected bucket %q", u.Bucket())
	}
}
