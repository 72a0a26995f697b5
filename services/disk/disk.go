package disk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"recommendation/filestore"

	log "github.com/sirupsen/logrus"
)

var _ filestore.FileManager = (*DiskDriver)(nil)

type DiskDriver struct {
	// This can be used as namespace
	// to differentiate files across multiple instances of DiskDriver
	// Analogus to bucket name
	baseDir string
}

func New(baseDir string) *DiskDriver {
	return &DiskDriver{baseDir: strings.TrimSuffix(baseDir, "/")}
}

func MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func (dd *DiskDriver) Create(dir, fileName string, reader io.Reader) error {
	err := MkdirAll(dir)
	if err != nil {
		log.WithError(err).WithField("dir", dir).Error("Failed to create dir")
		return err
	}

	file, err := os.Create(filepath.Join(dir, fileName))
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, reader)
	return err
}

// Get opens a file in read only mode.
// Caller should take care of closing the returned io.ReadCloser.
func (dd *DiskDriver) Get(dir, fileName string) (io.ReadCloser, error) {
	log.WithFields(log.Fields{
		"Path":     dir,
		"FileName": fileName,
	}).Debug("DiskDriver Opening file")

	return os.OpenFile(filepath.Join(dir, fileName), os.O_RDONLY, 0444)
}

func (dd *DiskDriver) GetBucketName() string {
	return dd.baseDir
}

func (dd *DiskDriver) GetDatasetDir(datasetID string) string {
	return fmt.Sprintf("%s/datasets/%s/", dd.baseDir, datasetID)
}

func (dd *DiskDriver) GetTransactionsFilePathAndName(datasetID, fileName string) (string, string) {
	return dd.GetDatasetDir(datasetID), fileName
}

func (dd *DiskDriver) GetItemsetsFilePathAndName(datasetID, runID string) (string, string) {
	path := dd.GetDatasetDir(datasetID) + "itemsets/"
	return path, fmt.Sprintf("itemsets_%s.json", runID)
}
