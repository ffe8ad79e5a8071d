package insights

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	httperr "github.com/aevon-lab/aevon-insights/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the insight API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/projects/:project_id/insights", s.HandleBuild)
	r.GET("/v1/projects/:project_id/insights/latest", s.HandleLatest)
}

// HandleBuild handles GET /v1/projects/:project_id/insights
// Query parameters: categories (comma separated, default all), start, end
// (RFC 3339 or YYYY-MM-DD), step (hour, day, week or minutes).
func (s *Service) HandleBuild(c *gin.Context) {
	projectID, ok := bindProjectID(c)
	if !ok {
		return
	}

	req := Request{ProjectID: projectID, Categories: Categories}

	if raw, present := c.GetQuery("categories"); present {
		categories, err := ParseCategories(raw)
		if err != nil {
			writeValidationError(c, err)
			return
		}
		req.Categories = categories
	}

	var err error
	if req.Start, err = parseTimeParam(c.Query("start")); err != nil {
		writeValidationError(c, invalidf(ErrInvalidWindow, "start: %v", err))
		return
	}
	if req.End, err = parseTimeParam(c.Query("end")); err != nil {
		writeValidationError(c, invalidf(ErrInvalidWindow, "end: %v", err))
		return
	}
	if raw := c.Query("step"); raw != "" {
		if req.Step, err = bucket.ParseTimeStep(raw); err != nil {
			writeValidationError(c, err)
			return
		}
	}

	report, err := s.Build(c.Request.Context(), req, TriggerAPI)
	if err != nil {
		if IsValidation(err) {
			writeValidationError(c, err)
			return
		}
		if errors.Is(err, ErrDataSource) {
			c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
				ErrorType: httperr.HttpDataSourceError,
				Message:   "Event store unavailable",
				Details:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to build insights",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// HandleLatest handles GET /v1/projects/:project_id/insights/latest
func (s *Service) HandleLatest(c *gin.Context) {
	projectID, ok := bindProjectID(c)
	if !ok {
		return
	}

	report, found := s.Latest(projectID)
	if !found {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "No scheduled report for project",
			Details:   gin.H{"project_id": projectID},
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

func bindProjectID(c *gin.Context) (int64, bool) {
	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid path parameters",
			Details:   "project_id must be a positive integer",
		})
		return 0, false
	}
	return projectID, true
}

func writeValidationError(c *gin.Context, err error) {
	errorType := httperr.HttpInvalidRequestError
	if errors.Is(err, ErrInvalidTimeStep) {
		errorType = httperr.HttpInvalidTimeStep
	}
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: errorType,
		Message:   "Invalid insights request",
		Details:   err.Error(),
	})
}

// parseTimeParam accepts RFC 3339 timestamps and plain dates (UTC midnight).
// An empty value is the zero time, which Build replaces by its default.
func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.UTC)
}
