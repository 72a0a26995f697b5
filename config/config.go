package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"recommendation/filestore"
	"recommendation/metrics"
	serviceDisk "recommendation/services/disk"
	serviceGCS "recommendation/services/gcstorage"
	serviceS3 "recommendation/services/s3"

	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/evalphobia/logrus_sentry"
	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	DEVELOPMENT = "development"
	STAGING     = "staging"
	PRODUCTION  = "production"
)

const (
	DatastoreTypePostgres = "postgres"
	DatastoreTypeSqlite   = "sqlite"

	StorageTypeDisk = "disk"
	StorageTypeS3   = "s3"
	StorageTypeGCS  = "gcs"
)

// EnvPrefix prefixes every environment override, i.e APRIORI_REDIS_HOST
// or APRIORI_DB_INFO_HOST.
const EnvPrefix = "apriori"

var initiated bool = false

type DBConf struct {
	// Type is one of postgres or sqlite. Empty disables run metadata.
	Type     string `json:"type" yaml:"type" split_words:"true"`
	Host     string `json:"host" yaml:"host" split_words:"true"`
	Port     int    `json:"port" yaml:"port" split_words:"true"`
	User     string `json:"user" yaml:"user" split_words:"true"`
	Name     string `json:"name" yaml:"name" split_words:"true"`
	Password string `json:"password" yaml:"password" split_words:"true"`
	// File is the sqlite database file, ":memory:" for tests.
	File string `json:"file" yaml:"file" split_words:"true"`
}

type Configuration struct {
	AppName string `json:"app_name" yaml:"app_name" split_words:"true"`
	Env     string `json:"env" yaml:"env" split_words:"true"`
	Port    int    `json:"port" yaml:"port" split_words:"true"`
	DBInfo  DBConf `json:"db" yaml:"db" split_words:"true"`

	RedisHost              string  `json:"redis_host" yaml:"redis_host" split_words:"true"`
	RedisPort              int     `json:"redis_port" yaml:"redis_port" split_words:"true"`
	CacheExpiryInSecs      float64 `json:"cache_expiry_in_secs" yaml:"cache_expiry_in_secs" split_words:"true"`
	StorageType            string  `json:"storage_type" yaml:"storage_type" split_words:"true"`
	DiskBaseDir            string  `json:"disk_base_dir" yaml:"disk_base_dir" split_words:"true"`
	BucketName             string  `json:"bucket_name" yaml:"bucket_name" split_words:"true"`
	AWSRegion              string  `json:"aws_region" yaml:"aws_region" split_words:"true"`
	GCPProjectID           string  `json:"gcp_project_id" yaml:"gcp_project_id" split_words:"true"`
	GCPProjectLocation     string  `json:"gcp_project_location" yaml:"gcp_project_location" split_words:"true"`
	SentryDSN              string  `json:"sentry_dsn" yaml:"sentry_dsn" split_words:"true"`
	DefaultMinSupport      float64 `json:"default_min_support" yaml:"default_min_support" split_words:"true"`
	MaxRequestTransactions int     `json:"max_request_transactions" yaml:"max_request_transactions" split_words:"true"`
}

type Services struct {
	Db              *gorm.DB
	Redis           *redis.Pool
	FileManager     filestore.FileManager
	MetricsExporter *stackdriver.Exporter
	SentryHook      *logrus_sentry.SentryHook
}

var configuration *Configuration = nil
var services *Services = nil

// LoadConfigFile reads a json or yaml (by extension) configuration and
// applies environment overrides on top of it.
func LoadConfigFile(path string) (*Configuration, error) {
	configFileAbsPath, _ := filepath.Abs(path)

	logCtx := log.WithFields(log.Fields{
		"file": configFileAbsPath,
	})

	raw, err := ioutil.ReadFile(configFileAbsPath)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load config")
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := &Configuration{}
	switch strings.ToLower(filepath.Ext(configFileAbsPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, config)
	default:
		err = json.Unmarshal(raw, config)
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal config")
		return nil, errors.Wrap(err, "failed to unmarshal config file")
	}

	if err := ApplyEnvOverrides(config); err != nil {
		return nil, err
	}
	logCtx.WithFields(log.Fields{"env": config.Env}).Info("Config File Loaded")
	return config, nil
}

// ApplyEnvOverrides overrides the fields whose APRIORI_* variable is set.
func ApplyEnvOverrides(config *Configuration) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return errors.Wrap(err, "failed to apply environment overrides")
	}
	return nil
}

// Validate checks the configuration before any service is initialised.
func (config *Configuration) Validate() error {
	switch config.Env {
	case DEVELOPMENT, STAGING, PRODUCTION:
	default:
		return fmt.Errorf("invalid env %q", config.Env)
	}

	switch config.DBInfo.Type {
	case "", DatastoreTypePostgres, DatastoreTypeSqlite:
	default:
		return fmt.Errorf("invalid datastore type %q", config.DBInfo.Type)
	}

	switch config.StorageType {
	case StorageTypeDisk, StorageTypeS3, StorageTypeGCS:
	default:
		return fmt.Errorf("invalid storage type %q", config.StorageType)
	}
	if config.StorageType != StorageTypeDisk && config.BucketName == "" {
		return fmt.Errorf("bucket name is required for storage type %s", config.StorageType)
	}

	if config.DefaultMinSupport < 0 || config.DefaultMinSupport >= 1 {
		return fmt.Errorf("default min support %v is outside [0, 1)", config.DefaultMinSupport)
	}
	return nil
}

func initLogging(config *Configuration) *logrus_sentry.SentryHook {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if config.Env == DEVELOPMENT {
		log.SetLevel(log.DebugLevel)
	}

	if config.SentryDSN == "" {
		return nil
	}

	hook, err := logrus_sentry.NewAsyncSentryHook(config.SentryDSN, []log.Level{
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
	})
	if err != nil {
		log.WithError(err).Error("Failed to initialize sentry hook")
		return nil
	}
	hook.SetEnvironment(config.Env)
	hook.StacktraceConfiguration.Enable = true
	hook.Timeout = 20 * time.Second
	log.AddHook(hook)
	return hook
}

func initDB(dbConf DBConf) (*gorm.DB, error) {
	var db *gorm.DB
	var err error
	switch dbConf.Type {
	case "":
		return nil, nil
	case DatastoreTypeSqlite:
		db, err = gorm.Open("sqlite3", dbConf.File)
		if err == nil {
			// Every connection to an in-memory sqlite is a new database.
			db.DB().SetMaxOpenConns(1)
		}
	default:
		db, err = gorm.Open("postgres", fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=disable",
			dbConf.Host,
			dbConf.Port,
			dbConf.User,
			dbConf.Name,
			dbConf.Password))
		if err == nil {
			// Connection Pooling and Logging.
			db.DB().SetMaxIdleConns(10)
			db.DB().SetMaxOpenConns(100)
		}
	}
	if err != nil {
		log.WithFields(log.Fields{"err": err, "type": dbConf.Type}).Error("Failed Db Initialization")
		return nil, err
	}
	log.WithField("type", dbConf.Type).Info("Db Service initialized")
	return db, nil
}

func initRedisPool(host string, port int) *redis.Pool {
	if host == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	pool := &redis.Pool{
		MaxIdle:     50,
		MaxActive:   500,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	log.WithField("addr", addr).Info("Cache redis pool initialized")
	return pool
}

// NewFileManager builds the storage driver for the configured storage type.
func NewFileManager(config *Configuration) (filestore.FileManager, error) {
	switch config.StorageType {
	case StorageTypeS3:
		return serviceS3.New(config.BucketName, config.AWSRegion), nil
	case StorageTypeGCS:
		return serviceGCS.New(config.BucketName)
	default:
		return serviceDisk.New(config.DiskBaseDir), nil
	}
}

func Init(config *Configuration) error {
	if initiated {
		return fmt.Errorf("Config already initialized")
	}
	if config == nil {
		return errors.New("nil configuration")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	configuration = config

	sentryHook := initLogging(config)

	db, err := initDB(config.DBInfo)
	if err != nil {
		return err
	}

	fileManager, err := NewFileManager(config)
	if err != nil {
		log.WithError(err).Error("Failed to initialize file manager")
		return err
	}

	services = &Services{
		Db:              db,
		Redis:           initRedisPool(config.RedisHost, config.RedisPort),
		FileManager:     fileManager,
		MetricsExporter: metrics.InitMetrics(config.Env, config.AppName, config.GCPProjectID, config.GCPProjectLocation),
		SentryHook:      sentryHook,
	}

	initiated = true
	return nil
}

// Shutdown flushes collectors and closes connections.
func Shutdown() {
	if services == nil {
		return
	}
	SafeFlushSentryHook()
	if services.MetricsExporter != nil {
		services.MetricsExporter.Flush()
		services.MetricsExporter.StopMetricsExporter()
	}
	if services.Redis != nil {
		services.Redis.Close()
	}
	if services.Db != nil {
		services.Db.Close()
	}
}

// SafeFlushSentryHook flushes pending sentry events, if the hook is enabled.
func SafeFlushSentryHook() {
	if services != nil && services.SentryHook != nil {
		services.SentryHook.Flush()
	}
}

func GetConfig() *Configuration {
	return configuration
}

func GetServices() *Services {
	return services
}

func IsDevelopment() bool {
	return configuration != nil && strings.Compare(configuration.Env, DEVELOPMENT) == 0
}

func IsDBEnabled() bool {
	return services != nil && services.Db != nil
}

func IsCacheEnabled() bool {
	return services != nil && services.Redis != nil
}

func GetCacheRedisConnection() redis.Conn {
	return services.Redis.Get()
}

func GetFileManager() filestore.FileManager {
	return services.FileManager
}

func GetCacheExpiryInSecs() float64 {
	if configuration == nil {
		return 0
	}
	return configuration.CacheExpiryInSecs
}
