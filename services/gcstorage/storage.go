package gcstorage

import (
	"context"
	"fmt"
	"io"

	"recommendation/filestore"

	"cloud.google.com/go/storage"
)

var _ filestore.FileManager = (*GCSDriver)(nil)

type GCSDriver struct {
	client     *storage.Client
	BucketName string
}

func New(bucketName string) (*GCSDriver, error) {
	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	d := &GCSDriver{
		BucketName: bucketName,
		client:     client,
	}
	return d, nil
}

func (gcsd *GCSDriver) Create(dir, fileName string, reader io.Reader) error {
	ctx := context.Background()
	obj := gcsd.client.Bucket(gcsd.BucketName).Object(dir + fileName)
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, reader); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (gcsd *GCSDriver) Get(dir, fileName string) (io.ReadCloser, error) {
	ctx := context.Background()
	obj := gcsd.client.Bucket(gcsd.BucketName).Object(dir + fileName)
	return obj.NewReader(ctx)
}

func (gcsd *GCSDriver) GetBucketName() string {
	return gcsd.BucketName
}

func (gcsd *GCSDriver) GetDatasetDir(datasetID string) string {
	return fmt.Sprintf("datasets/%s/", datasetID)
}

func (gcsd *GCSDriver) GetTransactionsFilePathAndName(datasetID, fileName string) (string, string) {
	return gcsd.GetDatasetDir(datasetID), fileName
}

func (gcsd *GCSDriver) GetItemsetsFilePathAndName(datasetID, runID string) (string, string) {
	path := gcsd.GetDatasetDir(datasetID) + "itemsets/"
	return path, fmt.Sprintf("itemsets_%s.json", runID)
}
