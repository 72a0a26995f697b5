package s3

import (
	"fmt"
	"io"

	"recommendation/filestore"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	log "github.com/sirupsen/logrus"
)

const (
	separator = "/"
)

var _ filestore.FileManager = (*S3Driver)(nil)

type S3Driver struct {
	s3         *s3.S3
	uploader   *s3manager.Uploader
	BucketName string
	Region     string
}

func New(bucketName, region string) *S3Driver {
	sess := session.Must(session.NewSession(aws.NewConfig().WithRegion(region)))
	return &S3Driver{
		s3:         s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		BucketName: bucketName,
		Region:     region,
	}
}

func objectKey(dir, fileName string) string {
	if dir == "" {
		return fileName
	}
	if dir[len(dir)-1:] == separator {
		return dir + fileName
	}
	return dir + separator + fileName
}

func (sd *S3Driver) Create(dir, fileName string, reader io.Reader) error {
	logCtx := log.WithFields(log.Fields{
		"Dir":        dir,
		"FileName":   fileName,
		"BucketName": sd.BucketName,
		"Region":     sd.Region,
	})
	logCtx.Debug("S3Driver Creating file")

	_, err := sd.uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(sd.BucketName),
		Key:    aws.String(objectKey(dir, fileName)),
		Body:   reader,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to upload file to s3")
	}
	return err
}

func (sd *S3Driver) Get(dir, fileName string) (io.ReadCloser, error) {
	input := s3.GetObjectInput{
		Bucket: aws.String(sd.BucketName),
		Key:    aws.String(objectKey(dir, fileName)),
	}
	op, err := sd.s3.GetObject(&input)
	if err != nil {
		return nil, err
	}
	return op.Body, nil
}

func (sd *S3Driver) GetBucketName() string {
	return sd.BucketName
}

func (sd *S3Driver) GetDatasetDir(datasetID string) string {
	return fmt.Sprintf("datasets/%s/", datasetID)
}

func (sd *S3Driver) GetTransactionsFilePathAndName(datasetID, fileName string) (string, string) {
	return sd.GetDatasetDir(datasetID), fileName
}

func (sd *S3Driver) GetItemsetsFilePathAndName(datasetID, runID string) (string, string) {
	path := sd.GetDatasetDir(datasetID) + "itemsets/"
	return path, fmt.Sprintf("itemsets_%s.json", runID)
}
