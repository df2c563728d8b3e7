package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/stix"
)

// Source produces a parsed bundle. Fetch is called once per load.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*model.ParsedBundle, error)
}

// DecodeFunc turns a raw bundle document into records
type DecodeFunc func(r io.Reader) (*model.ParsedBundle, error)

// StaticSource serves an in-memory bundle
type StaticSource struct {
	name   string
	bundle *model.ParsedBundle
}

// NewStaticSource wraps bundle. name defaults to "static".
func NewStaticSource(name string, bundle *model.ParsedBundle) *StaticSource {
	if name == "" {
		name = "static"
	}
	return &StaticSource{name: name, bundle: bundle}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Fetch(ctx context.Context) (*model.ParsedBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.bundle == nil {
		return nil, fmt.Errorf("%w: static source has no bundle", model.ErrMalformedBundle)
	}
	return s.bundle, nil
}

// isSnappy reports whether a file name or object key denotes a snappy
// framed stream
func isSnappy(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".sz", ".snappy":
		return true
	}
	return false
}

// decodeStream decodes r, unwrapping snappy framing when compressed is set
func decodeStream(r io.Reader, compressed bool, decode DecodeFunc) (*model.ParsedBundle, error) {
	if compressed {
		r = snappy.NewReader(r)
	} else {
		r = bufio.NewReaderSize(r, 1<<16)
	}
	return decode(r)
}

// FileSource reads a STIX bundle from disk. Files ending in .sz or .snappy
// are snappy framed.
type FileSource struct {
	path   string
	decode DecodeFunc
}

// NewFileSource creates a file source using the STIX decoder
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, decode: stix.Decode}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Fetch(ctx context.Context) (*model.ParsedBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()
	return decodeStream(f, isSnappy(s.path), s.decode)
}

// ObjectGetter is the slice of the S3 client API a bucket source needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options locates a bundle object. Empty credentials use the default AWS
// credential chain; Endpoint selects an S3-compatible store with path-style
// addressing.
type S3Options struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Source reads a STIX bundle object from S3
type S3Source struct {
	client ObjectGetter
	bucket string
	key    string
	decode DecodeFunc
}

// NewS3Source builds an S3 client from opts
func NewS3Source(ctx context.Context, opts S3Options) (*S3Source, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SourceWithClient(client, opts.Bucket, opts.Key), nil
}

// NewS3SourceWithClient uses an existing client
func NewS3SourceWithClient(client ObjectGetter, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key, decode: stix.Decode}
}

func (s *S3Source) Name() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Source) Fetch(ctx context.Context) (*model.ParsedBundle, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", s.Name(), err)
	}
	defer out.Body.Close()
	return decodeStream(out.Body, isSnappy(s.key), s.decode)
}
