package task

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"

	"recommendation/cache"
	cacheRedis "recommendation/cache/redis"
	C "recommendation/config"
	"recommendation/model"
	U "recommendation/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTransactions = `1 2 3 4
1 2 4
1 2
2 3 4
2 3
3 4
2 4
`

func TestMain(m *testing.M) {
	baseDir, err := os.MkdirTemp("", "apriori-task")
	if err != nil {
		panic(err)
	}

	redisServer, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	redisPort, err := strconv.Atoi(redisServer.Port())
	if err != nil {
		panic(err)
	}

	config := &C.Configuration{
		Env:               C.DEVELOPMENT,
		StorageType:       C.StorageTypeDisk,
		DiskBaseDir:       baseDir,
		DBInfo:            C.DBConf{Type: C.DatastoreTypeSqlite, File: ":memory:"},
		RedisHost:         redisServer.Host(),
		RedisPort:         redisPort,
		CacheExpiryInSecs: 3600,
	}
	if err := C.Init(config); err != nil {
		panic(err)
	}
	if err := model.AutoMigrate(); err != nil {
		panic(err)
	}

	code := m.Run()
	C.Shutdown()
	redisServer.Close()
	os.RemoveAll(baseDir)
	os.Exit(code)
}

func createDataset(t *testing.T, fileName, content string) string {
	fm := C.GetFileManager()
	datasetID := U.RandomLowerAphaNumString(8)
	path, name := fm.GetTransactionsFilePathAndName(datasetID, fileName)
	require.Nil(t, fm.Create(path, name, strings.NewReader(content)))
	return datasetID
}

func readItemsetsFile(t *testing.T, output *MineOutput) ItemsetsFile {
	fm := C.GetFileManager()
	path, name := fm.GetItemsetsFilePathAndName(output.DatasetID, output.RunID)
	assert.Equal(t, path+name, output.ResultPath)

	reader, err := fm.Get(path, name)
	require.Nil(t, err)
	defer reader.Close()
	raw, err := ioutil.ReadAll(reader)
	require.Nil(t, err)

	var file ItemsetsFile
	require.Nil(t, json.Unmarshal(raw, &file))
	return file
}

func TestMineItemsets(t *testing.T) {
	datasetID := createDataset(t, "baskets.txt", sampleTransactions)

	output, status, err := MineItemsets(C.GetFileManager(), MineParams{
		DatasetID: datasetID, FileName: "baskets.txt", MinSupport: 0.42})
	require.Nil(t, err)

	assert.Equal(t, uint64(7), output.NumTransactions)
	assert.Equal(t, 8, output.NumItemsets)
	assert.Equal(t, 2, output.MaxLength)
	assert.False(t, output.Cached)
	assert.Len(t, output.Levels, 3)
	assert.Equal(t, output.RunID, status["run_id"])
	assert.Nil(t, status["error"])

	file := readItemsetsFile(t, output)
	assert.Equal(t, output.RunID, file.RunID)
	keys := make([]string, 0)
	for _, s := range file.Itemsets {
		if s.Len() == 2 {
			keys = append(keys, s.Key())
		}
	}
	assert.Equal(t, []string{"1,2", "2,3", "2,4", "3,4"}, keys)

	run, errCode := model.GetMiningRun(output.RunID)
	assert.Equal(t, http.StatusFound, errCode)
	assert.Equal(t, model.MiningRunStatusSuccess, run.Status)
	assert.Equal(t, 8, run.NumItemsets)
	assert.Equal(t, output.ResultPath, run.ResultPath)
}

func TestMineItemsetsJSONLines(t *testing.T) {
	content := `{"user":"a","basket":{"items":[1,2]}}
{"user":"b","basket":{"items":[1,2,3]}}
{"user":"c","basket":{"items":[3]}}
`
	datasetID := createDataset(t, "baskets.jsonl", content)

	output, _, err := MineItemsets(C.GetFileManager(), MineParams{
		DatasetID: datasetID, FileName: "baskets.jsonl", ItemsPath: "basket.items", MinSupport: 0.5})
	require.Nil(t, err)

	file := readItemsetsFile(t, output)
	keys := make([]string, 0)
	for _, s := range file.Itemsets {
		keys = append(keys, s.Key())
	}
	assert.Equal(t, []string{"1", "2", "3", "1,2"}, keys)
}

func TestMineItemsetsInvalidParams(t *testing.T) {
	fm := C.GetFileManager()

	_, status, err := MineItemsets(fm, MineParams{DatasetID: "d", FileName: "f.txt", MinSupport: 1})
	assert.Equal(t, ErrInvalidMinSupport, err)
	assert.NotNil(t, status["error"])

	_, _, err = MineItemsets(fm, MineParams{DatasetID: "d", FileName: "f.txt", MinSupport: -0.1})
	assert.Equal(t, ErrInvalidMinSupport, err)

	_, _, err = MineItemsets(fm, MineParams{FileName: "f.txt", MinSupport: 0.1})
	assert.Equal(t, ErrInvalidDataset, err)
}

func TestMineItemsetsMissingFile(t *testing.T) {
	_, status, err := MineItemsets(C.GetFileManager(), MineParams{
		DatasetID: U.RandomLowerAphaNumString(8), FileName: "missing.txt", MinSupport: 0.1})
	assert.NotNil(t, err)
	assert.NotNil(t, status["error"])
}

func TestMineItemsetsMalformedFileMarksRunFailed(t *testing.T) {
	datasetID := createDataset(t, "baskets.txt", "1 2\n3 apple\n")

	_, _, err := MineItemsets(C.GetFileManager(), MineParams{
		DatasetID: datasetID, FileName: "baskets.txt", MinSupport: 0.1})
	assert.NotNil(t, err)

	runs, errCode := model.GetMiningRunsByDatasetID(datasetID)
	assert.Equal(t, http.StatusFound, errCode)
	require.Len(t, runs, 1)
	assert.Equal(t, model.MiningRunStatusFailed, runs[0].Status)
}

func TestMineItemsetsCache(t *testing.T) {
	datasetID := createDataset(t, "baskets.txt", sampleTransactions)
	fm := C.GetFileManager()
	params := MineParams{DatasetID: datasetID, FileName: "baskets.txt", MinSupport: 0.42}

	mined, _, err := MineItemsets(fm, params)
	require.Nil(t, err)
	assert.False(t, mined.Cached)

	key, err := cache.NewItemsetsKey(datasetID, 0.42, "text", "", xxhash.Sum64String(sampleTransactions))
	require.Nil(t, err)
	exists, err := cacheRedis.Exists(key)
	assert.Nil(t, err)
	assert.True(t, exists)

	cached, status, err := MineItemsets(fm, params)
	require.Nil(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, true, status["cached"])
	assert.NotEqual(t, mined.RunID, cached.RunID)
	assert.Equal(t, mined.ResultPath, cached.ResultPath)
	assert.Equal(t, mined.NumItemsets, cached.NumItemsets)
	assert.Equal(t, mined.Levels, cached.Levels)

	run, errCode := model.GetMiningRun(cached.RunID)
	assert.Equal(t, http.StatusFound, errCode)
	assert.Equal(t, model.MiningRunStatusCached, run.Status)
	assert.Equal(t, mined.ResultPath, run.ResultPath)
	assert.Equal(t, 8, run.NumItemsets)

	params.SkipCache = true
	fresh, _, err := MineItemsets(fm, params)
	require.Nil(t, err)
	assert.False(t, fresh.Cached)
	assert.NotEqual(t, mined.ResultPath, fresh.ResultPath)
	assert.Equal(t, mined.NumItemsets, fresh.NumItemsets)
}

func TestMineItemsetsCacheMissOnOtherThreshold(t *testing.T) {
	datasetID := createDataset(t, "baskets.txt", sampleTransactions)
	fm := C.GetFileManager()

	_, _, err := MineItemsets(fm, MineParams{DatasetID: datasetID, FileName: "baskets.txt", MinSupport: 0.42})
	require.Nil(t, err)

	output, _, err := MineItemsets(fm, MineParams{DatasetID: datasetID, FileName: "baskets.txt", MinSupport: 0.8})
	require.Nil(t, err)
	assert.False(t, output.Cached)
	assert.Equal(t, 1, output.NumItemsets)
}

func TestMineItemsetsCacheScopedByItemsPath(t *testing.T) {
	content := `{"a":[1,2],"b":[7]}
{"a":[1,2],"b":[8]}
`
	datasetID := createDataset(t, "baskets.jsonl", content)
	fm := C.GetFileManager()

	byA, _, err := MineItemsets(fm, MineParams{
		DatasetID: datasetID, FileName: "baskets.jsonl", ItemsPath: "a", MinSupport: 0.4})
	require.Nil(t, err)
	assert.False(t, byA.Cached)
	assert.Equal(t, 3, byA.NumItemsets)

	byB, _, err := MineItemsets(fm, MineParams{
		DatasetID: datasetID, FileName: "baskets.jsonl", ItemsPath: "b", MinSupport: 0.4})
	require.Nil(t, err)
	assert.False(t, byB.Cached)
	assert.Equal(t, 2, byB.NumItemsets)
	assert.NotEqual(t, byA.ResultPath, byB.ResultPath)

	file := readItemsetsFile(t, byB)
	keys := make([]string, 0)
	for _, s := range file.Itemsets {
		keys = append(keys, s.Key())
	}
	assert.Equal(t, []string{"7", "8"}, keys)

	again, _, err := MineItemsets(fm, MineParams{
		DatasetID: datasetID, FileName: "baskets.jsonl", ItemsPath: "b", MinSupport: 0.4})
	require.Nil(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, byB.ResultPath, again.ResultPath)
}

func TestMineItemsetsCacheScopedByFormat(t *testing.T) {
	content := `{"items":[1,2]}
{"items":[1,2]}
`
	datasetID := createDataset(t, "baskets.jsonl", content)
	fm := C.GetFileManager()

	_, _, err := MineItemsets(fm, MineParams{
		DatasetID: datasetID, FileName: "baskets.jsonl", MinSupport: 0.4})
	require.Nil(t, err)

	// The same bytes read as text fail to parse instead of hitting the cache.
	_, _, err = MineItemsets(fm, MineParams{
		DatasetID: datasetID, FileName: "baskets.jsonl", Format: "text", MinSupport: 0.4})
	assert.NotNil(t, err)
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name      string
		params    MineParams
		format    string
		itemsPath string
	}{
		{"text by extension", MineParams{FileName: "b.txt", ItemsPath: "x"}, "text", ""},
		{"jsonl default path", MineParams{FileName: "b.jsonl"}, "jsonl", "items"},
		{"jsonl custom path", MineParams{FileName: "b.jsonl", ItemsPath: "basket.items"}, "jsonl", "basket.items"},
		{"format override", MineParams{FileName: "b.txt", Format: "jsonl"}, "jsonl", "items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, itemsPath := resolveFormat(tt.params)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.itemsPath, itemsPath)
		})
	}
}
