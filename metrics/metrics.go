package metrics

import (
	"context"
	"time"

	"contrib.go.opencensus.io/exporter/stackdriver"
	log "github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Metric names are prefixed with the kind of value recorded: Incr, Count, Latency or Bytes.
const (
	// Mining runs.
	IncrAprioriRunCount       = "apriori_run_count"
	IncrAprioriRunFailedCount = "apriori_run_failed_count"
	IncrAprioriRunCachedCount = "apriori_run_cached_count"
	LatencyAprioriRun         = "apriori_run_latency"

	// Size of a run.
	CountAprioriTransactions = "apriori_transactions_count"
	CountAprioriItemsets     = "apriori_itemsets_count"
	CountAprioriCandidates   = "apriori_candidates_count"
	BytesAprioriTransactions = "apriori_transactions_file_size"

	// HTTP api.
	IncrAPIMineRequestCount = "api_mine_request_count"
	LatencyAPIMineRequest   = "api_mine_request_latency"
)

var (
	latencyStats    = stats.Float64("apriori_latency", "Mining and request latency in milliseconds", stats.UnitMilliseconds)
	guageStatsInt   = stats.Int64("apriori_counter", "Runs, transactions, candidates and itemsets", stats.UnitDimensionless)
	bytesStatsFloat = stats.Float64("apriori_bytes", "Size of a transactions file in bytes", stats.UnitBytes)
)

var (
	// MetricNameTag carries one of the metric names above.
	MetricNameTag, _ = tag.NewKey("metric_name")
)

var (
	latencyView = &view.View{
		Name:        "latency_view",
		Measure:     latencyStats,
		Description: "Distribution of mining and request latencies",
		Aggregation: view.Distribution(0, 10, 50, 100, 500, 1000, 5000, 30000),
		TagKeys:     []tag.Key{MetricNameTag},
	}

	countIntView = &view.View{
		Measure:     guageStatsInt,
		Name:        "count_int_view",
		Description: "Sum of run counters",
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{MetricNameTag},
	}

	bytesSizeViewDistributed = &view.View{
		Measure:     bytesStatsFloat,
		Name:        "bytes_size_view",
		Description: "Distribution of transactions file sizes",
		Aggregation: view.Distribution(0, 1<<10, 1<<20, 16<<20, 256<<20),
		TagKeys:     []tag.Key{MetricNameTag},
	}
)

// GenericTask is the monitored resource the exporter reports under.
type GenericTask struct {
	ProjectID string
	Location  string
	Namespace string
	Job       string
	TaskID    string
}

func (gt *GenericTask) MonitoredResource() (resType string, labels map[string]string) {
	labels = map[string]string{
		"project_id": gt.ProjectID,
		"location":   gt.Location,
		"namespace":  gt.Namespace,
		"job":        gt.Job,
		"task_id":    gt.TaskID,
	}
	return "generic_task", labels
}

func registerViews() error {
	return view.Register(latencyView, countIntView, bytesSizeViewDistributed)
}

// InitMetrics starts the stackdriver exporter. Nothing is exported in
// development or without a GCP project.
func InitMetrics(env, appName, projectID, projectLocation string) *stackdriver.Exporter {
	if env == "development" || projectID == "" {
		return nil
	}
	logCtx := log.WithFields(log.Fields{"project_id": projectID, "app": appName})

	if err := registerViews(); err != nil {
		logCtx.WithError(err).Error("Failed to register metric views")
		return nil
	}

	monitoredResource := GenericTask{
		ProjectID: projectID,
		Location:  projectLocation,
		Namespace: env,
		Job:       appName,
		TaskID:    "generic_task",
	}

	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:         projectID,
		MetricPrefix:      "custom.googleapis.com/" + appName + "/",
		ReportingInterval: time.Minute,
		MonitoredResource: &monitoredResource,
		Context:           context.Background(),
		Timeout:           30 * time.Second,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to create metrics exporter")
		return nil
	}
	view.SetReportingPeriod(time.Minute)

	if err := exporter.StartMetricsExporter(); err != nil {
		logCtx.WithError(err).Error("Failed to start metrics exporter")
		return nil
	}
	logCtx.Info("Metrics exporter started")
	return exporter
}

func Increment(metricName string) {
	CountInt(metricName, int64(1))
}

// CountInt adds count to metricName's counter.
func CountInt(metricName string, count int64) {
	ctx, err := tag.New(context.Background(), tag.Upsert(MetricNameTag, metricName))
	if err != nil {
		log.WithError(err).Error("Failed to record CountInt")
		return
	}
	stats.Record(ctx, guageStatsInt.M(count))
}

// RecordLatency records latency in milliseconds.
func RecordLatency(metricName string, latency float64) {
	ctx, err := tag.New(context.Background(), tag.Upsert(MetricNameTag, metricName))
	if err != nil {
		log.WithError(err).Error("Failed to record Latency")
		return
	}
	stats.Record(ctx, latencyStats.M(latency))
}

func RecordBytesSize(metricName string, bytes float64) {
	ctx, err := tag.New(context.Background(), tag.Upsert(MetricNameTag, metricName))
	if err != nil {
		log.WithError(err).Error("Failed to record Bytes")
		return
	}
	stats.Record(ctx, bytesStatsFloat.M(bytes))
}
