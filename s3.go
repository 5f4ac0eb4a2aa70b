package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type bucketAPI interface {
	ListBuckets(*s3.ListBucketsInput) (*s3.ListBucketsOutput, error)
	CreateBucket(*s3.CreateBucketInput) (*s3.CreateBucketOutput, error)
	WaitUntilBucketExists(*s3.HeadBucketInput) error
	GetObjectRequest(*s3.GetObjectInput) (*request.Request, *s3.GetObjectOutput)
}

type uploader interface {
	Upload(*s3manager.UploadInput, ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// chartPublisher uploads rendered charts to a bucket and hands out presigned links.
type chartPublisher struct {
	svc      bucketAPI
	uploader uploader
	bucket   string
	logger   *slog.Logger
	now      func() time.Time
}

func checkBucketExists(svc bucketAPI, name string) (bool, error) {
	list, err := svc.ListBuckets(&s3.ListBucketsInput{})
	if err != nil {
		return false, fmt.Errorf("could not list buckets: %w", err)
	}
	for _, bucket := range list.Buckets {
		if aws.StringValue(bucket.Name) == name {
			return true, nil
		}
	}
	return false, nil
}

func (p *chartPublisher) createBucket() error {
	exists, err := checkBucketExists(p.svc, p.bucket)
	if err != nil || exists {
		return err
	}

	_, err = p.svc.CreateBucket(&s3.CreateBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		return fmt.Errorf("could not create bucket %q: %w", p.bucket, err)
	}

	p.logger.Info("waiting for bucket to be created", "bucket", p.bucket)
	err = p.svc.WaitUntilBucketExists(&s3.HeadBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		return fmt.Errorf("error occurred while waiting for bucket %q to be created: %w", p.bucket, err)
	}
	p.logger.Info("bucket created", "bucket", p.bucket)
	return nil
}

// publish uploads body under a dated key and returns a link valid for an hour.
func (p *chartPublisher) publish(name string, body io.Reader) (string, error) {
	location := p.now().Format("2006-01-02") + " " + name
	_, err := p.uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(location),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("could not upload %s to s3: %w", name, err)
	}
	return p.presignedLink(location)
}

func (p *chartPublisher) presignedLink(location string) (string, error) {
	req, _ := p.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(location),
	})
	urlStr, err := req.Presign(1 * time.Hour)
	if err != nil {
		return "", fmt.Errorf("failed to sign request for %s: %w", location, err)
	}
	return urlStr, nil
}
