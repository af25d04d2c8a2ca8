package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	ObjectStoreClient *s3.Client
	bucketName        string
	storeEndpoint     string
)

// ObjectStore is the §4.E/§4.H/§4.L external collaborator interface: an
// S3-compatible multipart API. Generalized from the teacher's single-shot
// presigned PUT/GET wrapper to the full three-phase multipart lifecycle.
type ObjectStore interface {
	CreateMultipartUpload(ctx context.Context, key, contentType string) (uploadID string, err error)
	PresignUploadPartURL(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	ListStaleMultipartUploads(ctx context.Context, olderThan time.Time) ([]StaleUpload, error)
	PresignPutURL(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignGetURL(ctx context.Context, key string, expires time.Duration) (string, error)
	GetObject(ctx context.Context, key string) (ObjectReader, error)
	DeleteObject(ctx context.Context, key string) error
	VerifyObjectExists(ctx context.Context, key string) (bool, error)
}

type CompletedPart struct {
	PartNumber int32
	ETag       string
}

type StaleUpload struct {
	Key      string
	UploadID string
}

type ObjectReader interface {
	Read(p []byte) (int, error)
	Close() error
}

// InitStore initializes the S3-compatible client using static credentials
// and a custom endpoint, per the teacher's InitR2.
func InitStore(accessKey, secretKey, accountID, bucket, region string) error {
	bucketName = bucket
	storeEndpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	cfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		Region:      region,
	}

	ObjectStoreClient = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(storeEndpoint)
		o.UsePathStyle = true
	})

	log.Println("Successfully initialized object store client")
	return nil
}

// Store implements ObjectStore against the package-level ObjectStoreClient.
type Store struct{}

func (Store) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	out, err := ObjectStoreClient.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UploadId), nil
}

func (Store) PresignUploadPartURL(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(ObjectStoreClient)
	req, err := presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(bucketName),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	completed := make([]s3types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, s3types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}
	_, err := ObjectStoreClient.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucketName),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	return err
}

func (Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := ObjectStoreClient.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucketName),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		var nsu *s3types.NoSuchUpload
		if errors.As(err, &nsu) {
			// Missing handle: idempotent success (§4.E Abort contract).
			return nil
		}
	}
	return err
}

// ListStaleMultipartUploads lists in-progress multipart uploads initiated
// before olderThan, for the §4.L reaper's orphan sweep.
func (Store) ListStaleMultipartUploads(ctx context.Context, olderThan time.Time) ([]StaleUpload, error) {
	out, err := ObjectStoreClient.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return nil, err
	}
	var stale []StaleUpload
	for _, u := range out.Uploads {
		if u.Initiated != nil && u.Initiated.Before(olderThan) {
			stale = append(stale, StaleUpload{
				Key:      aws.ToString(u.Key),
				UploadID: aws.ToString(u.UploadId),
			})
		}
	}
	return stale, nil
}

func (Store) PresignPutURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(ObjectStoreClient)
	req, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (Store) PresignGetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(ObjectStoreClient)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (Store) GetObject(ctx context.Context, key string) (ObjectReader, error) {
	out, err := ObjectStoreClient.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (Store) DeleteObject(ctx context.Context, key string) error {
	_, err := ObjectStoreClient.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	return err
}

// VerifyObjectExists checks if a given object key exists in the bucket.
func (Store) VerifyObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := ObjectStoreClient.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NotFound
		if errors.As(err, &nsk) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
