package handler

import (
	C "recommendation/config"
	mid "recommendation/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func InitRoutes(r *gin.Engine) {
	// CORS
	if C.IsDevelopment() {
		log.Info("Running in development.")
		config := cors.DefaultConfig()
		config.AllowOrigins = []string{"http://localhost:8080",
			"http://localhost:3000"}
		r.Use(cors.New(config))
	}

	r.GET("/status", StatusHandler)
	r.POST("/mine", MineHandler)

	datasets := r.Group("/datasets/:dataset_id", mid.SetScopeDatasetId())
	datasets.PUT("/files/:file_name", UploadTransactionsHandler)
	datasets.POST("/runs", CreateRunHandler)
	datasets.GET("/runs", GetRunsHandler)

	r.GET("/runs/:run_id", GetRunHandler)
	r.GET("/runs/:run_id/itemsets", GetRunItemsetsHandler)
}
