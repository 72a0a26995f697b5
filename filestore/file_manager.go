package filestore

import (
	"io"
)

type FileManager interface {
	Create(dir, fileName string, reader io.Reader) error
	Get(dir, fileName string) (io.ReadCloser, error)
	GetBucketName() string
	GetDatasetDir(datasetID string) string
	GetTransactionsFilePathAndName(datasetID, fileName string) (string, string)
	GetItemsetsFilePathAndName(datasetID, runID string) (string, string)
}
