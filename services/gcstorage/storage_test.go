package gcstorage

import (
	"fmt"
	"testing"

	U "recommendation/util"

	"github.com/stretchr/testify/assert"
)

// Path helpers do not touch the client, so no credentials are needed.
var gcsDriver = &GCSDriver{BucketName: "apriori-dev-test"}

func TestGetDatasetDir(t *testing.T) {
	datasetID := U.RandomLowerAphaNumString(6)

	result := gcsDriver.GetDatasetDir(datasetID)
	expected := fmt.Sprintf("datasets/%s/", datasetID)
	assert.Equal(t, expected, result)
}

func TestGetTransactionsFilePathAndName(t *testing.T) {
	datasetID := U.RandomLowerAphaNumString(6)

	resultPath, resultName := gcsDriver.GetTransactionsFilePathAndName(datasetID, "baskets.jsonl")
	assert.Equal(t, gcsDriver.GetDatasetDir(datasetID), resultPath)
	assert.Equal(t, "baskets.jsonl", resultName)
}

func TestGetItemsetsFilePathAndName(t *testing.T) {
	datasetID := U.RandomLowerAphaNumString(6)
	runID := U.RandomLowerAphaNumString(8)

	resultPath, resultName := gcsDriver.GetItemsetsFilePathAndName(datasetID, runID)
	assert.Equal(t, gcsDriver.GetDatasetDir(datasetID)+"itemsets/", resultPath)
	assert.Equal(t, fmt.Sprintf("itemsets_%s.json", runID), resultName)
	assert.Equal(t, "apriori-dev-test", gcsDriver.GetBucketName())
}
