package middleware

import (
	"net/http"
	"regexp"

	U "recommendation/util"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Dataset ids are used as storage path segments.
var datasetIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func IsValidDatasetID(datasetID string) bool {
	return datasetIDPattern.MatchString(datasetID)
}

// SetScopeDatasetId validates the dataset_id param and sets it on the scope.
func SetScopeDatasetId() gin.HandlerFunc {
	return func(c *gin.Context) {
		datasetID := c.Param("dataset_id")
		if !IsValidDatasetID(datasetID) {
			errorMessage := "Invalid dataset id"
			log.WithFields(log.Fields{"error": errorMessage, "datasetId": datasetID}).Error("Request failed with invalid dataset.")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorMessage})
			return
		}
		U.SetScope(c, SCOPE_DATASET_ID, datasetID)

		c.Next()
	}
}
