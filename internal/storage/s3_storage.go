package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/facturalink/dte-backend/internal/app/model"
)

// DocumentArchive is the long-term store for accepted documents. The fiscal
// record (payload plus reception stamp) is kept as JSON per document.
type DocumentArchive interface {
	ArchiveAccepted(ctx context.Context, doc *model.Document) (string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type S3Archive struct {
	client *s3.Client
	bucket string
}

// archivedDocument is the stored record shape.
type archivedDocument struct {
	GenerationCode string    `json:"generation_code"`
	ControlNumber  string    `json:"control_number"`
	Type           string    `json:"type"`
	Environment    string    `json:"environment"`
	Stamp          string    `json:"stamp"`
	AcceptedAt     time.Time `json:"accepted_at"`
	Payload        string    `json:"payload"`
}

func NewS3Archive(region, bucket, accessKeyID, secretAccessKey string) *S3Archive {
	var cfg aws.Config
	var err error

	// If credentials are provided, use them. Otherwise, use default credential chain
	if accessKeyID != "" && secretAccessKey != "" {
		cfg = aws.Config{
			Region: region,
			Credentials: credentials.NewStaticCredentialsProvider(
				accessKeyID,
				secretAccessKey,
				"",
			),
		}
	} else {
		// Use default credential chain (environment variables, ~/.aws/credentials, IAM role, etc.)
		cfg, err = config.LoadDefaultConfig(context.TODO(),
			config.WithRegion(region),
		)
		if err != nil {
			cfg = aws.Config{
				Region: region,
			}
		}
	}

	return &S3Archive{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}
}

// ArchiveAccepted writes the fiscal record of an accepted document and
// returns the object key. Keys are deterministic, so re-archiving the same
// document overwrites in place.
func (s *S3Archive) ArchiveAccepted(ctx context.Context, doc *model.Document) (string, error) {
	acceptedAt := time.Now()
	if doc.AcceptedAt != nil {
		acceptedAt = *doc.AcceptedAt
	}

	record := archivedDocument{
		GenerationCode: doc.GenerationCode,
		ControlNumber:  doc.ControlNumber,
		Type:           string(doc.Type),
		Environment:    string(doc.Environment),
		Stamp:          doc.Stamp,
		AcceptedAt:     acceptedAt,
		Payload:        doc.Payload,
	}
	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive record: %w", err)
	}

	key := fmt.Sprintf("dte/%d/%04d/%02d/%s.json",
		doc.TenantID, acceptedAt.Year(), int(acceptedAt.Month()), doc.GenerationCode)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive document: %w", err)
	}
	return key, nil
}

// PresignDownload returns a time-limited GET URL for an archived record.
func (s *S3Archive) PresignDownload(ctx context.Context, key string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}
