package model

import (
	"net/http"
	"time"

	C "recommendation/config"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

const (
	MiningRunStatusStarted = "started"
	MiningRunStatusSuccess = "success"
	MiningRunStatusFailed  = "failed"
	// Served from the result cache without mining.
	MiningRunStatusCached = "cached"
)

type MiningRun struct {
	ID              string    `gorm:"primary_key:true;type:varchar(36)" json:"id"`
	DatasetID       string    `gorm:"not null;index" json:"dataset_id"`
	MinSupport      float64   `gorm:"not null" json:"min_support"`
	NumTransactions uint64    `json:"num_transactions"`
	NumItemsets     int       `json:"num_itemsets"`
	MaxLength       int       `json:"max_length"`
	Status          string    `gorm:"not null;size:16" json:"status"`
	ResultPath      string    `json:"result_path"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (run *MiningRun) BeforeCreate() error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = MiningRunStatusStarted
	}
	return nil
}

// AutoMigrate creates or updates the tables owned by this package.
func AutoMigrate() error {
	db := C.GetServices().Db
	return db.AutoMigrate(&MiningRun{}).Error
}

func isValidMinSupport(minSupport float64) bool {
	return minSupport >= 0 && minSupport < 1
}

func CreateMiningRun(run *MiningRun) (*MiningRun, int) {
	db := C.GetServices().Db

	logCtx := log.WithFields(log.Fields{"dataset_id": run.DatasetID, "min_support": run.MinSupport})
	logCtx.Info("Creating mining run")

	if run.DatasetID == "" || !isValidMinSupport(run.MinSupport) {
		logCtx.Error("CreateMiningRun Failed. Invalid dataset or min support.")
		return nil, http.StatusBadRequest
	}

	if err := db.Create(run).Error; err != nil {
		logCtx.WithError(err).Error("CreateMiningRun Failed")
		return nil, http.StatusInternalServerError
	}

	return run, http.StatusCreated
}

// UpdateMiningRun updates the given columns of a run.
func UpdateMiningRun(id string, fields map[string]interface{}) int {
	db := C.GetServices().Db

	logCtx := log.WithFields(log.Fields{"run_id": id, "fields": fields})
	if id == "" || len(fields) == 0 {
		logCtx.Error("UpdateMiningRun Failed. Invalid run id or no fields.")
		return http.StatusBadRequest
	}

	query := db.Model(&MiningRun{}).Where("id = ?", id).Updates(fields)
	if err := query.Error; err != nil {
		logCtx.WithError(err).Error("UpdateMiningRun Failed")
		return http.StatusInternalServerError
	}
	if query.RowsAffected == 0 {
		return http.StatusNotFound
	}

	return http.StatusAccepted
}

func GetMiningRun(id string) (*MiningRun, int) {
	db := C.GetServices().Db

	var run MiningRun
	if err := db.Where("id = ?", id).First(&run).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}
		log.WithField("run_id", id).WithError(err).Error("GetMiningRun Failed")
		return nil, http.StatusInternalServerError
	}

	return &run, http.StatusFound
}

// GetMiningRunsByDatasetID returns the runs of a dataset, latest first.
func GetMiningRunsByDatasetID(datasetID string) ([]MiningRun, int) {
	db := C.GetServices().Db

	var runs []MiningRun
	if err := db.Where("dataset_id = ?", datasetID).Order("created_at DESC").Find(&runs).Error; err != nil {
		log.WithField("dataset_id", datasetID).WithError(err).Error("GetMiningRunsByDatasetID Failed")
		return nil, http.StatusInternalServerError
	}
	if len(runs) == 0 {
		return runs, http.StatusNotFound
	}

	return runs, http.StatusFound
}
