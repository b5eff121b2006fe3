package daemon

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thand-io/relay/internal/broker"
	"github.com/thand-io/relay/internal/models"
)

// Client-facing messages. Upstream bodies only ever go to the server log.
const (
	UsageMessage              = "Use /gettoken/<username>, where <username> is a valid TS user."
	ClusterUnavailableMessage = "Error accessing the ThoughtSpot cluster.  Check the cluster status and login details."
)

func tokenFailureMessage(username string) string {
	return fmt.Sprintf("Unable to get a token for user %s.", username)
}

// usageHandler answers / and unknown paths.
func (s *Server) usageHandler(c *gin.Context) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: UsageMessage})
}

// getTokenHandler mints a token for the username in the path and returns
// it as the plain response body.
func (s *Server) getTokenHandler(c *gin.Context) {

	username := c.Param("username")
	log := LogWithCorrelation(c).WithField("username", username)

	s.TokenRequests.Add(1)

	binding, err := s.Brokers.Get(c.Request.Context())

	if err != nil {
		s.TokenFailures.Add(1)
		log.WithError(err).Errorln("No usable cluster configuration")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: ClusterUnavailableMessage})
		return
	}

	token, err := binding.Broker.GetToken(c.Request.Context(), binding.Config.Secret, username)

	if err != nil {
		s.TokenFailures.Add(1)
		log.WithError(err).Errorln("Token request failed")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: clientMessage(err, username)})
		return
	}

	s.TokensIssued.Add(1)

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(token))
}

func clientMessage(err error, username string) string {
	switch {
	case errors.Is(err, broker.ErrInvalidRequest):
		return UsageMessage
	case errors.Is(err, broker.ErrSessionUnavailable):
		return ClusterUnavailableMessage
	default:
		return tokenFailureMessage(username)
	}
}
