package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	C "recommendation/config"
	mid "recommendation/middleware"
	"recommendation/model"
	"recommendation/task"
	U "recommendation/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTransactions = [][]uint64{
	{1, 2, 3, 4},
	{1, 2, 4},
	{1, 2},
	{2, 3, 4},
	{2, 3},
	{3, 4},
	{2, 4},
}

type itemsetResponse struct {
	Items   []uint64 `json:"items"`
	Support float64  `json:"support"`
	Count   uint64   `json:"count"`
}

type mineResponse struct {
	NumTransactions uint64            `json:"num_transactions"`
	Itemsets        []itemsetResponse `json:"itemsets"`
	Levels          []struct {
		Length     int `json:"length"`
		Candidates int `json:"candidates"`
		Frequent   int `json:"frequent"`
	} `json:"levels"`
}

func TestMain(m *testing.M) {
	baseDir, err := os.MkdirTemp("", "apriori-handler")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(baseDir)

	config := &C.Configuration{
		Env:                    C.DEVELOPMENT,
		StorageType:            C.StorageTypeDisk,
		DiskBaseDir:            baseDir,
		DBInfo:                 C.DBConf{Type: C.DatastoreTypeSqlite, File: ":memory:"},
		DefaultMinSupport:      0.42,
		MaxRequestTransactions: 100,
	}
	if err := C.Init(config); err != nil {
		panic(err)
	}
	if err := model.AutoMigrate(); err != nil {
		panic(err)
	}

	code := m.Run()
	C.Shutdown()
	os.Exit(code)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mid.RequestIdGenerator(), mid.Recovery())
	InitRoutes(r)
	return r
}

func sendRequest(r *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func mustJSON(t *testing.T, v interface{}) []byte {
	body, err := json.Marshal(v)
	require.Nil(t, err)
	return body
}

func TestMineHandler(t *testing.T) {
	r := newRouter()
	body := mustJSON(t, map[string]interface{}{"transactions": sampleTransactions, "min_support": 0.42})

	w := sendRequest(r, http.MethodPost, "/mine", body)
	require.Equal(t, http.StatusOK, w.Code)

	var response mineResponse
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, uint64(7), response.NumTransactions)
	assert.Len(t, response.Itemsets, 8)
	assert.Len(t, response.Levels, 3)
	assert.Equal(t, []uint64{1}, response.Itemsets[0].Items)
	assert.Equal(t, uint64(3), response.Itemsets[0].Count)

	w = sendRequest(r, http.MethodPost, "/mine?min_length=2", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &response))
	pairs := make([]string, 0)
	for _, s := range response.Itemsets {
		pairs = append(pairs, U.JoinUint64s(s.Items, ","))
	}
	assert.Equal(t, []string{"1,2", "2,3", "2,4", "3,4"}, pairs)
}

func TestMineHandlerDefaultMinSupport(t *testing.T) {
	r := newRouter()
	w := sendRequest(r, http.MethodPost, "/mine", mustJSON(t, map[string]interface{}{"transactions": sampleTransactions}))
	require.Equal(t, http.StatusOK, w.Code)

	var response mineResponse
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Itemsets, 8)
}

func TestMineHandlerBadRequests(t *testing.T) {
	r := newRouter()
	tooMany := make([][]uint64, 101)

	tests := []struct {
		name   string
		url    string
		body   string
		status int
	}{
		{"invalid json", "/mine", `{"transactions":`, http.StatusBadRequest},
		{"negative item", "/mine", `{"transactions":[[-1]],"min_support":0.1}`, http.StatusBadRequest},
		{"support of one", "/mine", `{"transactions":[[1]],"min_support":1}`, http.StatusBadRequest},
		{"negative support", "/mine", `{"transactions":[[1]],"min_support":-0.2}`, http.StatusBadRequest},
		{"invalid min length", "/mine?min_length=x", `{"transactions":[[1]],"min_support":0.1}`, http.StatusBadRequest},
		{"too many transactions", "/mine", string(mustJSON(t, map[string]interface{}{"transactions": tooMany})),
			http.StatusRequestEntityTooLarge},
		{"empty transactions", "/mine", `{"transactions":[],"min_support":0.1}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := sendRequest(r, http.MethodPost, tt.url, []byte(tt.body))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func uploadDataset(t *testing.T, r *gin.Engine, datasetID, fileName, content string) {
	w := sendRequest(r, http.MethodPut, fmt.Sprintf("/datasets/%s/files/%s", datasetID, fileName), []byte(content))
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRunsLifecycle(t *testing.T) {
	r := newRouter()
	datasetID := U.RandomLowerAphaNumString(8)
	uploadDataset(t, r, datasetID, "baskets.txt", "1 2 3 4\n1 2 4\n1 2\n2 3 4\n2 3\n3 4\n2 4\n")

	w := sendRequest(r, http.MethodPost, fmt.Sprintf("/datasets/%s/runs", datasetID),
		[]byte(`{"file_name":"baskets.txt","min_support":0.42}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var output task.MineOutput
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &output))
	assert.Equal(t, datasetID, output.DatasetID)
	assert.Equal(t, 8, output.NumItemsets)
	assert.NotEmpty(t, output.RunID)

	w = sendRequest(r, http.MethodGet, fmt.Sprintf("/datasets/%s/runs", datasetID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs []model.MiningRun
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, output.RunID, runs[0].ID)
	assert.Equal(t, model.MiningRunStatusSuccess, runs[0].Status)

	w = sendRequest(r, http.MethodGet, "/runs/"+output.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run model.MiningRun
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, 2, run.MaxLength)

	w = sendRequest(r, http.MethodGet, "/runs/"+output.RunID+"/itemsets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var file struct {
		RunID    string            `json:"run_id"`
		Itemsets []itemsetResponse `json:"itemsets"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &file))
	assert.Equal(t, output.RunID, file.RunID)
	assert.Len(t, file.Itemsets, 8)
}

func TestRunsErrors(t *testing.T) {
	r := newRouter()
	datasetID := U.RandomLowerAphaNumString(8)

	w := sendRequest(r, http.MethodGet, "/runs/"+U.RandomLowerAphaNumString(16), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = sendRequest(r, http.MethodGet, fmt.Sprintf("/datasets/%s/runs", datasetID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = sendRequest(r, http.MethodPost, fmt.Sprintf("/datasets/%s/runs", datasetID),
		[]byte(`{"file_name":"missing.txt","min_support":0.1}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = sendRequest(r, http.MethodPost, fmt.Sprintf("/datasets/%s/runs", datasetID),
		[]byte(`{"file_name":"../secrets","min_support":0.1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	uploadDataset(t, r, datasetID, "baskets.txt", "1 2\n")
	w = sendRequest(r, http.MethodPost, fmt.Sprintf("/datasets/%s/runs", datasetID),
		[]byte(`{"file_name":"baskets.txt","min_support":1.5}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = sendRequest(r, http.MethodPut, fmt.Sprintf("/datasets/%s/files/.hidden", datasetID), []byte("1\n"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusHandler(t *testing.T) {
	r := newRouter()
	w := sendRequest(r, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"db_enabled":true`)
}
