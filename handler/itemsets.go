package handler

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"regexp"
	"strconv"
	"time"

	"recommendation/apriori"
	C "recommendation/config"
	IS "recommendation/itemset"
	"recommendation/metrics"
	mid "recommendation/middleware"
	"recommendation/model"
	"recommendation/task"
	U "recommendation/util"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// File names are used as storage path segments.
var fileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-][a-zA-Z0-9._-]{0,127}$`)

type MineRequest struct {
	Transactions [][]uint64 `json:"transactions"`
	MinSupport   *float64   `json:"min_support"`
}

type MineResponse struct {
	NumTransactions uint64               `json:"num_transactions"`
	Itemsets        []*IS.ItemSet        `json:"itemsets"`
	Levels          []apriori.LevelStats `json:"levels"`
}

type CreateRunRequest struct {
	MinSupport *float64 `json:"min_support"`
	FileName   string   `json:"file_name"`
	Format     string   `json:"format"`
	ItemsPath  string   `json:"items_path"`
	SkipCache  bool     `json:"skip_cache"`
}

func StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"db_enabled":     C.IsDBEnabled(),
		"cache_enabled":  C.IsCacheEnabled(),
		"storage_bucket": C.GetFileManager().GetBucketName(),
	})
}

func isValidMinSupport(minSupport float64) bool {
	return minSupport >= 0 && minSupport < 1
}

func resolveMinSupport(minSupport *float64) float64 {
	if minSupport == nil {
		return C.GetConfig().DefaultMinSupport
	}
	return *minSupport
}

// MineHandler mines the transactions posted on the body.
// Optional query min_length drops smaller itemsets from the response.
func MineHandler(c *gin.Context) {
	startTime := time.Now()
	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})
	metrics.Increment(metrics.IncrAPIMineRequestCount)

	var request MineRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logCtx.WithError(err).Error("Mine request JSON decoding failed.")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "json decoding : " + err.Error()})
		return
	}

	minSupport := resolveMinSupport(request.MinSupport)
	if !isValidMinSupport(minSupport) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": task.ErrInvalidMinSupport.Error()})
		return
	}

	maxTransactions := C.GetConfig().MaxRequestTransactions
	if maxTransactions > 0 && len(request.Transactions) > maxTransactions {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "too many transactions, upload a dataset file instead"})
		return
	}

	minLength := 0
	if minLengthParam := c.Query("min_length"); minLengthParam != "" {
		var err error
		minLength, err = strconv.Atoi(minLengthParam)
		if err != nil || minLength < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid min_length"})
			return
		}
	}

	result := apriori.Mine(request.Transactions, minSupport)
	itemsets := lo.Filter(result.ItemSets(), func(s *IS.ItemSet, _ int) bool {
		return s.Len() >= minLength
	})
	metrics.RecordLatency(metrics.LatencyAPIMineRequest, U.TimeSinceMs(startTime))

	logCtx.WithFields(log.Fields{
		"numTransactions": result.NumTransactions,
		"numItemsets":     len(itemsets),
		"minSupport":      minSupport,
	}).Debug("Mined request transactions.")

	c.JSON(http.StatusOK, MineResponse{
		NumTransactions: result.NumTransactions,
		Itemsets:        itemsets,
		Levels:          result.Levels,
	})
}

// UploadTransactionsHandler stores the request body as a transactions file
// of the dataset.
func UploadTransactionsHandler(c *gin.Context) {
	datasetID := U.GetScopeByKeyAsString(c, mid.SCOPE_DATASET_ID)
	fileName := c.Param("file_name")
	logCtx := log.WithFields(log.Fields{
		"reqId":     U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
		"datasetId": datasetID,
		"fileName":  fileName,
	})

	if !fileNamePattern.MatchString(fileName) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}

	fm := C.GetFileManager()
	dir, name := fm.GetTransactionsFilePathAndName(datasetID, fileName)
	if err := fm.Create(dir, name, c.Request.Body); err != nil {
		logCtx.WithError(err).Error("Failed to store transactions file.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"dataset_id": datasetID, "file_name": fileName, "path": dir + name})
}

func CreateRunHandler(c *gin.Context) {
	datasetID := U.GetScopeByKeyAsString(c, mid.SCOPE_DATASET_ID)
	logCtx := log.WithFields(log.Fields{
		"reqId":     U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
		"datasetId": datasetID,
	})

	var request CreateRunRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logCtx.WithError(err).Error("Create run JSON decoding failed.")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "json decoding : " + err.Error()})
		return
	}
	if !fileNamePattern.MatchString(request.FileName) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}

	output, status, err := task.MineItemsets(C.GetFileManager(), task.MineParams{
		DatasetID:  datasetID,
		FileName:   request.FileName,
		MinSupport: resolveMinSupport(request.MinSupport),
		Format:     request.Format,
		ItemsPath:  request.ItemsPath,
		SkipCache:  request.SkipCache,
	})
	if err != nil {
		switch {
		case err == task.ErrInvalidMinSupport || err == task.ErrInvalidDataset:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case os.IsNotExist(errors.Cause(err)):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "transactions file not found"})
		default:
			logCtx.WithError(err).WithField("status", status).Error("Mining run failed.")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, output)
}

func GetRunsHandler(c *gin.Context) {
	if !C.IsDBEnabled() {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "run metadata is not enabled"})
		return
	}

	datasetID := U.GetScopeByKeyAsString(c, mid.SCOPE_DATASET_ID)
	runs, errCode := model.GetMiningRunsByDatasetID(datasetID)
	switch errCode {
	case http.StatusFound:
		c.JSON(http.StatusOK, runs)
	case http.StatusNotFound:
		c.JSON(http.StatusOK, []model.MiningRun{})
	default:
		c.AbortWithStatusJSON(errCode, gin.H{"error": "failed to get runs"})
	}
}

func getRun(c *gin.Context) (*model.MiningRun, bool) {
	if !C.IsDBEnabled() {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "run metadata is not enabled"})
		return nil, false
	}

	run, errCode := model.GetMiningRun(c.Param("run_id"))
	if errCode == http.StatusNotFound {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return nil, false
	}
	if errCode != http.StatusFound {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "failed to get run"})
		return nil, false
	}
	return run, true
}

func GetRunHandler(c *gin.Context) {
	run, ok := getRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetRunItemsetsHandler responds with the itemsets file of a finished run.
func GetRunItemsetsHandler(c *gin.Context) {
	run, ok := getRun(c)
	if !ok {
		return
	}
	if run.ResultPath == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "run has no result", "status": run.Status})
		return
	}

	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
		"runId": run.ID,
	})

	dir, name := path.Split(run.ResultPath)
	reader, err := C.GetFileManager().Get(dir, name)
	if err != nil {
		logCtx.WithError(err).Error("Failed to open itemsets file.")
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "result file not found"})
		return
	}
	defer reader.Close()

	raw, err := ioutil.ReadAll(reader)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read itemsets file.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to read result"})
		return
	}

	var file task.ItemsetsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		logCtx.WithError(err).Error("Failed to decode itemsets file.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to decode result"})
		return
	}
	c.JSON(http.StatusOK, file)
}
