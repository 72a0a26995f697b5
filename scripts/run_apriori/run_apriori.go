package main

import (
	"flag"
	"os"

	C "recommendation/config"
	"recommendation/model"
	T "recommendation/task"

	log "github.com/sirupsen/logrus"
)

// ./run_apriori --dataset_id=retail --file_name=baskets.txt --min_support=0.05
// ./run_apriori --storage_type=gcs --bucket_name=apriori-staging --dataset_id=retail --file_name=baskets.jsonl --items_path=basket.items
func main() {
	envFlag := flag.String("env", "development", "")
	datasetIDFlag := flag.String("dataset_id", "", "Dataset to mine.")
	fileNameFlag := flag.String("file_name", "", "Transactions file of the dataset.")
	minSupportFlag := flag.Float64("min_support", 0.1, "Itemsets with support strictly greater are kept.")
	formatFlag := flag.String("format", "", "Optional: text or jsonl. Picked from the file extension by default.")
	itemsPathFlag := flag.String("items_path", "", "Optional: path of the items array on json lines files.")
	skipCacheFlag := flag.Bool("skip_cache", false, "")

	storageTypeFlag := flag.String("storage_type", C.StorageTypeDisk, "disk, s3 or gcs")
	diskBaseDirFlag := flag.String("disk_base_dir", "/usr/local/var/apriori/cloud_storage", "")
	bucketNameFlag := flag.String("bucket_name", "", "")
	awsRegionFlag := flag.String("aws_region", "us-east-1", "")

	dbTypeFlag := flag.String("db_type", "", "Optional: postgres or sqlite, records the run.")
	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "apriori", "")
	dbName := flag.String("db_name", "apriori", "")
	dbPass := flag.String("db_pass", "", "")
	dbFile := flag.String("db_file", "/usr/local/var/apriori/apriori.db", "")

	redisHost := flag.String("redis_host", "", "Optional: enables the result cache.")
	redisPort := flag.Int("redis_port", 6379, "")

	gcpProjectID := flag.String("gcp_project_id", "", "")
	gcpProjectLocation := flag.String("gcp_project_location", "", "")
	sentryDSN := flag.String("sentry_dsn", "", "Sentry DSN")
	flag.Parse()

	config := &C.Configuration{
		AppName: "run_apriori",
		Env:     *envFlag,
		DBInfo: C.DBConf{
			Type:     *dbTypeFlag,
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
			File:     *dbFile,
		},
		RedisHost:          *redisHost,
		RedisPort:          *redisPort,
		StorageType:        *storageTypeFlag,
		DiskBaseDir:        *diskBaseDirFlag,
		BucketName:         *bucketNameFlag,
		AWSRegion:          *awsRegionFlag,
		GCPProjectID:       *gcpProjectID,
		GCPProjectLocation: *gcpProjectLocation,
		SentryDSN:          *sentryDSN,
		DefaultMinSupport:  *minSupportFlag,
	}
	if err := C.ApplyEnvOverrides(config); err != nil {
		log.WithError(err).Fatal("Failed to apply env overrides.")
	}

	err := C.Init(config)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize.")
	}

	if C.IsDBEnabled() {
		if err := model.AutoMigrate(); err != nil {
			log.WithError(err).Fatal("Failed to migrate db.")
		}
	}

	_, status, err := T.MineItemsets(C.GetFileManager(), T.MineParams{
		DatasetID:  *datasetIDFlag,
		FileName:   *fileNameFlag,
		MinSupport: *minSupportFlag,
		Format:     *formatFlag,
		ItemsPath:  *itemsPathFlag,
		SkipCache:  *skipCacheFlag,
	})
	C.Shutdown()
	if err != nil {
		log.WithError(err).WithField("status", status).Error("Mining itemsets failed.")
		os.Exit(1)
	}
	log.WithFields(status).Info("Mining itemsets completed.")
}
