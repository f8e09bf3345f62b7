package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/corpusforge/platform/ent/usageevent"
	"github.com/corpusforge/platform/pkg/billing"
)

// RegisterBillingRoutes wires a standalone quota-reservation endpoint that
// checks and records usage before billable work starts. The QA engine does
// not call it; it reserves quota through billing.Gate directly.
func (s *Server) RegisterBillingRoutes(gate *billing.Gate) {
	s.quotaGate = gate
	s.echo.POST("/companies/:id/usage/reserve", s.reserveUsageHandler)
}

type reserveUsageRequest struct {
	EventType     usageevent.EventType `json:"event_type"`
	Quantity      int                  `json:"quantity"`
	FileSizeBytes *int64               `json:"file_size_bytes,omitempty"`
}

func (s *Server) reserveUsageHandler(c *echo.Context) error {
	companyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid company id")
	}

	var req reserveUsageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	result, err := s.quotaGate.Reserve(c.Request().Context(), companyID, req.EventType, req.Quantity, req.FileSizeBytes)
	if err != nil {
		if err == billing.ErrNoAccess {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusOK
	if !result.Allowed {
		status = http.StatusPaymentRequired
	}
	return c.JSON(status, result)
}
