package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-attackgraph/pkg/config"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

const fixturePath = "../stix/testdata/enterprise-mini.json"

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func snappyFrame(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFileSource(t *testing.T) {
	src := NewFileSource(fixturePath)
	if src.Name() != "file:"+fixturePath {
		t.Errorf("Name() = %q", src.Name())
	}

	b, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(b.Techniques) != 6 {
		t.Errorf("techniques = %d, want 6", len(b.Techniques))
	}
}

func TestFileSource_Snappy(t *testing.T) {
	for _, ext := range []string{".sz", ".snappy"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "enterprise-attack.json"+ext)
			if err := os.WriteFile(path, snappyFrame(t, readFixture(t)), 0o600); err != nil {
				t.Fatal(err)
			}

			b, err := NewFileSource(path).Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if len(b.Groups) != 2 {
				t.Errorf("groups = %d, want 2", len(b.Groups))
			}
		})
	}
}

func TestFileSource_Errors(t *testing.T) {
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`{"type":"indicator"}`), 0o600)
	if _, err := NewFileSource(bad).Fetch(context.Background()); !errors.Is(err, model.ErrMalformedBundle) {
		t.Errorf("expected ErrMalformedBundle, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileSource(fixturePath).Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type fakeS3 struct {
	objects map[string][]byte
	input   *s3.GetObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = in
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{
		"intel/enterprise-attack.json":    readFixture(t),
		"intel/enterprise-attack.json.sz": snappyFrame(t, readFixture(t)),
	}}

	for _, key := range []string{"enterprise-attack.json", "enterprise-attack.json.sz"} {
		t.Run(key, func(t *testing.T) {
			src := NewS3SourceWithClient(client, "intel", key)
			b, err := src.Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if len(b.Techniques) != 6 {
				t.Errorf("techniques = %d", len(b.Techniques))
			}
			if *client.input.Bucket != "intel" || *client.input.Key != key {
				t.Errorf("unexpected request %+v", client.input)
			}
		})
	}

	src := NewS3SourceWithClient(client, "intel", "missing.json")
	if src.Name() != "s3://intel/missing.json" {
		t.Errorf("Name() = %q", src.Name())
	}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestNewS3Source_StaticCredentials(t *testing.T) {
	src, err := NewS3Source(context.Background(), S3Options{
		Bucket:          "intel",
		Key:             "enterprise-attack.json",
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	if err != nil {
		t.Fatalf("NewS3Source failed: %v", err)
	}
	if src.Name() != "s3://intel/enterprise-attack.json" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestStaticSource(t *testing.T) {
	if _, err := NewStaticSource("", nil).Fetch(context.Background()); !errors.Is(err, model.ErrMalformedBundle) {
		t.Errorf("expected ErrMalformedBundle for nil bundle, got %v", err)
	}
	if NewStaticSource("", nil).Name() != "static" {
		t.Error("default name should be static")
	}
}

func TestManager_FileSourceEndToEnd(t *testing.T) {
	m := NewManager(NewFileSource(fixturePath), Options{})
	snap, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// G0007 -> attack-pattern--missing is dangling; T1003 loses TA0006
	if snap.Stats.DroppedRelationships != 1 {
		t.Errorf("dropped = %d, want 1", snap.Stats.DroppedRelationships)
	}
	g, err := snap.Store.Group("G0016")
	if err != nil {
		t.Fatal(err)
	}
	if len(g.TechniqueIDs) != 2 {
		t.Errorf("G0016 techniques = %v", g.TechniqueIDs)
	}
	sub, _ := snap.Store.Technique("T1566.001")
	if sub.ParentID != "T1566" {
		t.Errorf("ParentID = %q", sub.ParentID)
	}
}

func TestSourceFromConfig(t *testing.T) {
	ctx := context.Background()

	src, err := SourceFromConfig(ctx, config.BundleConfig{Source: config.SourceFile, Path: "bundle.json"})
	if err != nil {
		t.Fatalf("file source: %v", err)
	}
	if src.Name() != "file:bundle.json" {
		t.Errorf("name = %q", src.Name())
	}

	src, err = SourceFromConfig(ctx, config.BundleConfig{
		Source: config.SourceS3,
		S3: config.S3Config{
			Bucket:          "intel",
			Key:             "enterprise.json.sz",
			Region:          "us-east-1",
			Endpoint:        "http://localhost:9000",
			AccessKeyID:     "AKIA",
			SecretAccessKey: "secret",
		},
	})
	if err != nil {
		t.Fatalf("s3 source: %v", err)
	}
	if src.Name() != "s3://intel/enterprise.json.sz" {
		t.Errorf("name = %q", src.Name())
	}

	if _, err := SourceFromConfig(ctx, config.BundleConfig{Source: "ftp"}); err == nil {
		t.Error("expected error for unknown source")
	}
}
