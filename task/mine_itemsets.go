package task

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"recommendation/apriori"
	"recommendation/cache"
	cacheRedis "recommendation/cache/redis"
	C "recommendation/config"
	"recommendation/filestore"
	IS "recommendation/itemset"
	"recommendation/metrics"
	"recommendation/model"
	T "recommendation/transaction"
	U "recommendation/util"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidMinSupport = errors.New("min support must be in [0, 1)")
	ErrInvalidDataset    = errors.New("dataset id and file name are required")
)

type MineParams struct {
	DatasetID  string
	FileName   string
	MinSupport float64
	// Format overrides the format picked from the file extension.
	Format string
	// ItemsPath is the gjson path of the items array for json lines files.
	ItemsPath string
	// SkipCache forces mining even when a cached result exists.
	SkipCache bool
}

type MineOutput struct {
	RunID           string               `json:"run_id"`
	DatasetID       string               `json:"dataset_id"`
	MinSupport      float64              `json:"min_support"`
	NumTransactions uint64               `json:"num_transactions"`
	NumItemsets     int                  `json:"num_itemsets"`
	MaxLength       int                  `json:"max_length"`
	Levels          []apriori.LevelStats `json:"levels"`
	ResultPath      string               `json:"result_path"`
	Cached          bool                 `json:"cached"`
}

// ItemsetsFile is the document written for every successful run.
type ItemsetsFile struct {
	RunID           string               `json:"run_id"`
	DatasetID       string               `json:"dataset_id"`
	MinSupport      float64              `json:"min_support"`
	NumTransactions uint64               `json:"num_transactions"`
	Levels          []apriori.LevelStats `json:"levels"`
	Itemsets        []*IS.ItemSet        `json:"itemsets"`
}

func validateMineParams(params MineParams) error {
	if params.MinSupport < 0 || params.MinSupport >= 1 {
		return ErrInvalidMinSupport
	}
	if params.DatasetID == "" || params.FileName == "" {
		return ErrInvalidDataset
	}
	return nil
}

func readTransactionsFile(fm filestore.FileManager, params MineParams) ([]byte, error) {
	path, name := fm.GetTransactionsFilePathAndName(params.DatasetID, params.FileName)
	reader, err := fm.Get(path, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open transactions file %s%s", path, name)
	}
	defer reader.Close()

	raw, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read transactions file %s%s", path, name)
	}
	return raw, nil
}

// resolveFormat returns the reader format and the items path the file is
// parsed with. The items path is empty for text files.
func resolveFormat(params MineParams) (string, string) {
	format := params.Format
	if format == "" {
		format = T.FormatFromFileName(params.FileName)
	}
	if format != T.FormatJSONLines {
		return format, ""
	}
	itemsPath := params.ItemsPath
	if itemsPath == "" {
		itemsPath = T.DefaultItemsPath
	}
	return format, itemsPath
}

func parseTransactions(raw []byte, format, itemsPath string) ([][]uint64, error) {
	if format == T.FormatJSONLines {
		return T.ReadJSONLines(bytes.NewReader(raw), itemsPath)
	}
	return T.ReadFormat(bytes.NewReader(raw), format)
}

func getCachedOutput(key *cache.Key) (*MineOutput, bool) {
	value, err := cacheRedis.Get(key)
	if err != nil {
		if !cacheRedis.IsNotFound(err) {
			log.WithError(err).Error("Failed to get itemsets from cache")
		}
		return nil, false
	}

	var output MineOutput
	if err := json.Unmarshal([]byte(value), &output); err != nil {
		log.WithError(err).Error("Failed to unmarshal cached itemsets")
		return nil, false
	}
	return &output, true
}

func setCachedOutput(key *cache.Key, output *MineOutput) {
	value, err := json.Marshal(output)
	if err != nil {
		log.WithError(err).Error("Failed to marshal itemsets for cache")
		return
	}
	if err := cacheRedis.Set(key, string(value), C.GetCacheExpiryInSecs()); err != nil {
		log.WithError(err).Error("Failed to set itemsets on cache")
	}
}

func outputToStatus(output *MineOutput, startTime time.Time) map[string]interface{} {
	return map[string]interface{}{
		"run_id":           output.RunID,
		"dataset_id":       output.DatasetID,
		"min_support":      output.MinSupport,
		"num_transactions": output.NumTransactions,
		"num_itemsets":     output.NumItemsets,
		"max_length":       output.MaxLength,
		"result_path":      output.ResultPath,
		"cached":           output.Cached,
		"time_taken_ms":    U.TimeSinceMs(startTime),
	}
}

func markRunFailed(runID string) {
	metrics.Increment(metrics.IncrAprioriRunFailedCount)
	if runID == "" || !C.IsDBEnabled() {
		return
	}
	if errCode := model.UpdateMiningRun(runID, map[string]interface{}{"status": model.MiningRunStatusFailed}); errCode != http.StatusAccepted {
		log.WithFields(log.Fields{"run_id": runID, "err_code": errCode}).Error("Failed to mark mining run as failed")
	}
}

func createRun(params MineParams, status string) (string, error) {
	if !C.IsDBEnabled() {
		return uuid.New().String(), nil
	}
	run, errCode := model.CreateMiningRun(&model.MiningRun{
		DatasetID:  params.DatasetID,
		MinSupport: params.MinSupport,
		Status:     status,
	})
	if errCode != http.StatusCreated {
		return "", errors.Errorf("failed to create mining run, err_code %d", errCode)
	}
	return run.ID, nil
}

// MineItemsets mines the frequent itemsets of a dataset's transactions file
// and writes them next to it. A result cached for the same file content,
// threshold, format and items path is returned without mining.
func MineItemsets(fm filestore.FileManager, params MineParams) (*MineOutput, map[string]interface{}, error) {
	startTime := time.Now()
	status := make(map[string]interface{})
	logCtx := log.WithFields(log.Fields{
		"dataset_id":  params.DatasetID,
		"file_name":   params.FileName,
		"min_support": params.MinSupport,
	})

	if err := validateMineParams(params); err != nil {
		status["error"] = err.Error()
		return nil, status, err
	}

	raw, err := readTransactionsFile(fm, params)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read transactions")
		status["error"] = err.Error()
		return nil, status, err
	}
	metrics.RecordBytesSize(metrics.BytesAprioriTransactions, float64(len(raw)))
	digest := xxhash.Sum64(raw)
	format, itemsPath := resolveFormat(params)

	var cacheKey *cache.Key
	if C.IsCacheEnabled() && !params.SkipCache {
		cacheKey, err = cache.NewItemsetsKey(params.DatasetID, params.MinSupport, format, itemsPath, digest)
		if err != nil {
			logCtx.WithError(err).Error("Failed to build itemsets cache key")
		} else if output, found := getCachedOutput(cacheKey); found {
			output.Cached = true
			if runID, err := createRun(params, model.MiningRunStatusCached); err == nil {
				output.RunID = runID
				if C.IsDBEnabled() {
					errCode := model.UpdateMiningRun(runID, map[string]interface{}{
						"num_transactions": output.NumTransactions,
						"num_itemsets":     output.NumItemsets,
						"max_length":       output.MaxLength,
						"result_path":      output.ResultPath,
					})
					if errCode != http.StatusAccepted {
						logCtx.WithFields(log.Fields{"run_id": runID, "err_code": errCode}).Error("Failed to update cached mining run")
					}
				}
			}
			metrics.Increment(metrics.IncrAprioriRunCachedCount)
			logCtx.WithField("result_path", output.ResultPath).Info("Served itemsets from cache")
			return output, outputToStatus(output, startTime), nil
		}
	}

	runID, err := createRun(params, model.MiningRunStatusStarted)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create mining run")
		status["error"] = err.Error()
		return nil, status, err
	}
	logCtx = logCtx.WithField("run_id", runID)
	metrics.Increment(metrics.IncrAprioriRunCount)

	trns, err := parseTransactions(raw, format, itemsPath)
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse transactions")
		markRunFailed(runID)
		status["error"] = err.Error()
		return nil, status, err
	}

	mineStartTime := time.Now()
	result := apriori.Mine(trns, params.MinSupport)
	metrics.RecordLatency(metrics.LatencyAprioriRun, U.TimeSinceMs(mineStartTime))

	itemsets := result.ItemSets()
	path, name := fm.GetItemsetsFilePathAndName(params.DatasetID, runID)
	content, err := json.Marshal(ItemsetsFile{
		RunID:           runID,
		DatasetID:       params.DatasetID,
		MinSupport:      params.MinSupport,
		NumTransactions: result.NumTransactions,
		Levels:          result.Levels,
		Itemsets:        itemsets,
	})
	if err == nil {
		err = fm.Create(path, name, bytes.NewReader(content))
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to write itemsets file")
		markRunFailed(runID)
		status["error"] = err.Error()
		return nil, status, errors.Wrap(err, "failed to write itemsets file")
	}

	output := &MineOutput{
		RunID:           runID,
		DatasetID:       params.DatasetID,
		MinSupport:      params.MinSupport,
		NumTransactions: result.NumTransactions,
		NumItemsets:     len(itemsets),
		MaxLength:       result.MaxLength(),
		Levels:          result.Levels,
		ResultPath:      path + name,
	}

	var numCandidates int
	for _, level := range result.Levels {
		numCandidates += level.Candidates
	}
	metrics.CountInt(metrics.CountAprioriTransactions, int64(output.NumTransactions))
	metrics.CountInt(metrics.CountAprioriItemsets, int64(output.NumItemsets))
	metrics.CountInt(metrics.CountAprioriCandidates, int64(numCandidates))

	if C.IsDBEnabled() {
		errCode := model.UpdateMiningRun(runID, map[string]interface{}{
			"status":           model.MiningRunStatusSuccess,
			"num_transactions": output.NumTransactions,
			"num_itemsets":     output.NumItemsets,
			"max_length":       output.MaxLength,
			"result_path":      output.ResultPath,
		})
		if errCode != http.StatusAccepted {
			logCtx.WithField("err_code", errCode).Error("Failed to update mining run")
		}
	}

	if cacheKey != nil {
		setCachedOutput(cacheKey, output)
	}

	logCtx.WithFields(log.Fields{
		"num_transactions": output.NumTransactions,
		"num_itemsets":     output.NumItemsets,
		"max_length":       output.MaxLength,
	}).Info("Mined itemsets")
	return output, outputToStatus(output, startTime), nil
}
