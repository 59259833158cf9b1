package hub

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"k8s.io/utils/pointer"

	dstackerrors "github.com/tnissen375/dstack/pkg/errors"
)

type BlobContent struct {
	ContentType     string
	ContentLength   int64
	ContentEncoding string
	Content         io.ReadCloser
}

func (s BlobContent) Close() error {
	if s.Content != nil {
		return s.Content.Close()
	}
	return nil
}

func (s BlobContent) Read(p []byte) (int, error) {
	return s.Content.Read(p)
}

type FsObjectMeta struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// FSProvider is the storage behind the hub: run documents, indexes and
// artifact blobs all go through it.
type FSProvider interface {
	Put(ctx context.Context, path string, content BlobContent) error
	PutLocation(ctx context.Context, path string) (string, error)
	Get(ctx context.Context, path string) (BlobContent, error)
	GetLocation(ctx context.Context, path string) (string, error)
	Remove(ctx context.Context, path string, recursive bool) error
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, path string, recursive bool) ([]FsObjectMeta, error)
}

type S3StorageProvider struct {
	Bucket  string
	Client  *s3.Client
	PreSign *s3.PresignClient
	Expire  time.Duration
	Prefix  string
}

func NewS3StorageProvider(ctx context.Context, opts *S3) (*S3StorageProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{URL: opts.URL}, nil
				},
			),
		),
	)
	if err != nil {
		return nil, err
	}
	s3cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &S3StorageProvider{
		Bucket:  opts.Bucket,
		Client:  s3cli,
		PreSign: s3.NewPresignClient(s3cli),
		Expire:  opts.PresignExpire,
		Prefix:  "hub",
	}, nil
}

func (m *S3StorageProvider) Put(ctx context.Context, path string, content BlobContent) error {
	uploadobj := &s3.PutObjectInput{
		Bucket:        aws.String(m.Bucket),
		Key:           m.prefixedKey(path),
		Body:          content.Content,
		ContentLength: content.ContentLength,
		ContentType:   aws.String(content.ContentType),
	}
	if _, err := manager.NewUploader(m.Client).Upload(ctx, uploadobj); err != nil {
		return dstackerrors.NewInternalError(err)
	}
	return nil
}

func (m *S3StorageProvider) PutLocation(ctx context.Context, path string) (string, error) {
	putobj := &s3.PutObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	}
	out, err := m.PreSign.PresignPutObject(ctx, putobj, s3.WithPresignExpires(m.Expire))
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (m *S3StorageProvider) Get(ctx context.Context, path string) (BlobContent, error) {
	getobjout, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	})
	if err != nil {
		return BlobContent{}, err
	}
	return BlobContent{
		Content:         getobjout.Body,
		ContentType:     pointer.StringDeref(getobjout.ContentType, ""),
		ContentLength:   getobjout.ContentLength,
		ContentEncoding: pointer.StringDeref(getobjout.ContentEncoding, ""),
	}, nil
}

func (m *S3StorageProvider) GetLocation(ctx context.Context, path string) (string, error) {
	getobj := &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	}
	out, err := m.PreSign.PresignGetObject(ctx, getobj, s3.WithPresignExpires(m.Expire))
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (m *S3StorageProvider) Remove(ctx context.Context, path string, recursive bool) error {
	if !recursive {
		_, err := m.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.Bucket),
			Key:    m.prefixedKey(path),
		})
		return err
	}
	prefix := m.prefixedKey(path)
	if !strings.HasSuffix(*prefix, "/") {
		*prefix += "/"
	}
	output, err := m.Client.ListObjects(ctx, &s3.ListObjectsInput{
		Bucket: aws.String(m.Bucket),
		Prefix: prefix,
	})
	if err != nil {
		return err
	}
	if len(output.Contents) == 0 {
		return nil
	}
	objectids := make([]s3types.ObjectIdentifier, 0, len(output.Contents))
	for _, object := range output.Contents {
		objectids = append(objectids, s3types.ObjectIdentifier{Key: object.Key})
	}
	_, err = m.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(m.Bucket),
		Delete: &s3types.Delete{Objects: objectids},
	})
	return err
}

func (m *S3StorageProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := m.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	})
	if err != nil {
		if IsS3StorageNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *S3StorageProvider) List(ctx context.Context, path string, recursive bool) ([]FsObjectMeta, error) {
	prefix := *m.prefixedKey(path)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	listinput := &s3.ListObjectsInput{
		Bucket: aws.String(m.Bucket),
		Prefix: aws.String(prefix),
	}
	if !recursive {
		listinput.Delimiter = aws.String("/")
	}
	var result []FsObjectMeta
	for {
		listobjout, err := m.Client.ListObjects(ctx, listinput)
		if err != nil {
			return nil, err
		}
		for _, obj := range listobjout.Contents {
			result = append(result, FsObjectMeta{
				Name:         strings.TrimPrefix(*obj.Key, prefix),
				Size:         obj.Size,
				LastModified: *obj.LastModified,
			})
		}
		if !listobjout.IsTruncated {
			break
		}
		listinput.Marker = listobjout.NextMarker
	}
	return result, nil
}

func (m *S3StorageProvider) prefixedKey(key string) *string {
	return aws.String(path.Join(m.Prefix, key))
}

func IsS3StorageNotFound(err error) bool {
	var apie *smithyhttp.ResponseError
	if errors.As(err, &apie) {
		return apie.HTTPStatusCode() == 404
	}
	return false
}

func IsStorageNotFound(err error) bool {
	return os.IsNotExist(err) || IsS3StorageNotFound(err)
}
