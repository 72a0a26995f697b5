package middleware

import (
	"net/http"
	"time"

	U "recommendation/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// scope constants.
const SCOPE_REQ_ID = "requestId"
const SCOPE_DATASET_ID = "datasetId"

const HEADER_REQUEST_ID = "X-Request-ID"

// RequestIdGenerator - Uses the incoming request id or generates a new one
// and sets it on the scope and the response header.
func RequestIdGenerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqId := c.Request.Header.Get(HEADER_REQUEST_ID)
		if reqId == "" {
			reqId = uuid.New().String()
		}
		U.SetScope(c, SCOPE_REQ_ID, reqId)
		c.Writer.Header().Set(HEADER_REQUEST_ID, reqId)

		c.Next()
	}
}

// Logger logs every request once it is served.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		logCtx := log.WithFields(log.Fields{
			"reqId":     U.GetScopeByKeyAsString(c, SCOPE_REQ_ID),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latencyMs": U.TimeSinceMs(startTime),
			"clientIp":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			logCtx.WithField("errors", c.Errors.String()).Error("Request failed.")
			return
		}
		logCtx.Info("Request served.")
	}
}

// Recovery responds with 500 instead of dropping the connection on panic.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(log.Fields{
			"reqId": U.GetScopeByKeyAsString(c, SCOPE_REQ_ID),
			"panic": recovered,
			"path":  c.Request.URL.Path,
		}).Error("Recovered from panic.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
