package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	C "recommendation/config"
	H "recommendation/handler"
	mid "recommendation/middleware"
	"recommendation/model"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ./app --env=development --api_http_port=8100 --db_type=sqlite --db_file=/usr/local/var/apriori/apriori.db --storage_type=disk --disk_base_dir=/usr/local/var/apriori/cloud_storage
// ./app --config_filepath=config/staging.yaml
func main() {
	configFilePath := flag.String("config_filepath", "", "Optional: json or yaml config file. Overrides all other flags.")

	env := flag.String("env", "development", "")
	port := flag.Int("api_http_port", 8100, "")

	dbType := flag.String("db_type", "sqlite", "postgres or sqlite. Empty disables run metadata.")
	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "apriori", "")
	dbName := flag.String("db_name", "apriori", "")
	dbPass := flag.String("db_pass", "", "")
	dbFile := flag.String("db_file", "/usr/local/var/apriori/apriori.db", "sqlite database file")

	redisHost := flag.String("redis_host", "", "Optional: enables the result cache.")
	redisPort := flag.Int("redis_port", 6379, "")
	cacheExpiry := flag.Float64("cache_expiry_in_secs", 7*24*60*60, "")

	storageType := flag.String("storage_type", C.StorageTypeDisk, "disk, s3 or gcs")
	diskBaseDir := flag.String("disk_base_dir", "/usr/local/var/apriori/cloud_storage", "")
	bucketName := flag.String("bucket_name", "", "")
	awsRegion := flag.String("aws_region", "us-east-1", "")

	gcpProjectID := flag.String("gcp_project_id", "", "Optional: enables metrics export.")
	gcpProjectLocation := flag.String("gcp_project_location", "", "")
	sentryDSN := flag.String("sentry_dsn", "", "Sentry DSN")

	defaultMinSupport := flag.Float64("default_min_support", 0.1, "")
	maxRequestTransactions := flag.Int("max_request_transactions", 100000, "Max transactions accepted on /mine.")
	flag.Parse()

	var config *C.Configuration
	if *configFilePath != "" {
		var err error
		config, err = C.LoadConfigFile(*configFilePath)
		if err != nil {
			log.WithError(err).Fatal("Failed to load config file.")
		}
	} else {
		config = &C.Configuration{
			AppName: "apriori_server",
			Env:     *env,
			Port:    *port,
			DBInfo: C.DBConf{
				Type:     *dbType,
				Host:     *dbHost,
				Port:     *dbPort,
				User:     *dbUser,
				Name:     *dbName,
				Password: *dbPass,
				File:     *dbFile,
			},
			RedisHost:              *redisHost,
			RedisPort:              *redisPort,
			CacheExpiryInSecs:      *cacheExpiry,
			StorageType:            *storageType,
			DiskBaseDir:            *diskBaseDir,
			BucketName:             *bucketName,
			AWSRegion:              *awsRegion,
			GCPProjectID:           *gcpProjectID,
			GCPProjectLocation:     *gcpProjectLocation,
			SentryDSN:              *sentryDSN,
			DefaultMinSupport:      *defaultMinSupport,
			MaxRequestTransactions: *maxRequestTransactions,
		}
		if err := C.ApplyEnvOverrides(config); err != nil {
			log.WithError(err).Fatal("Failed to apply env overrides.")
		}
	}
	if config.AppName == "" {
		config.AppName = "apriori_server"
	}

	// Initialize configs and connections.
	err := C.Init(config)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize.")
		return
	}
	defer C.Shutdown()

	if C.IsDBEnabled() {
		if err := model.AutoMigrate(); err != nil {
			log.WithError(err).Fatal("Failed to migrate db.")
		}
	}

	if !C.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mid.RequestIdGenerator())
	r.Use(mid.Logger())
	r.Use(mid.Recovery())

	// Initialize routes.
	H.InitRoutes(r)

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(C.GetConfig().Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", server.Addr).Info("Starting server.")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server stopped.")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully.")
	}
}
