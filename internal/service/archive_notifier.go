package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is satisfied by *s3.Client
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveNotifier stores one JSON record per completed link in a bucket
type ArchiveNotifier struct {
	client ObjectPutter
	bucket *string
	prefix string
}

func NewArchiveNotifier(c ObjectPutter, bucket *string, prefix string) *ArchiveNotifier {
	return &ArchiveNotifier{client: c, bucket: bucket, prefix: prefix}
}

func (n *ArchiveNotifier) Name() string { return "archive" }

func (n *ArchiveNotifier) Key(l LinkNotice) string {
	return path.Join(n.prefix, l.RealmID, fmt.Sprintf("%010d-%s.json", l.TokenID, l.SubjectID))
}

func (n *ArchiveNotifier) Notify(ctx context.Context, l LinkNotice) error {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode notice, %w", err)
	}

	_, err = n.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      n.bucket,
		Key:         aws.String(n.Key(l)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload notice, %w", err)
	}

	return nil
}
