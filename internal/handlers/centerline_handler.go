package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/centerline"
	"github.com/stwalsh4118/ng911/internal/httperr"
	"github.com/stwalsh4118/ng911/internal/middleware"
	"github.com/stwalsh4118/ng911/internal/schema"
)

// CenterlineFinder resolves candidate road centerlines for a point.
type CenterlineFinder interface {
	FindCandidates(ctx context.Context, pt orb.Point, attrs map[string]interface{}) ([]centerline.Candidate, error)
}

// CenterlineHandler handles road centerline HTTP requests.
type CenterlineHandler struct {
	finder CenterlineFinder
}

// NewCenterlineHandler creates a new CenterlineHandler instance.
func NewCenterlineHandler(finder CenterlineFinder) *CenterlineHandler {
	return &CenterlineHandler{finder: finder}
}

// NearestRequest represents the query parameters for the nearest endpoint.
// Coordinates are in the deployment's projected spatial reference; the street
// name components narrow the candidate set when supplied.
type NearestRequest struct {
	X          float64 `form:"x" binding:"required"`
	Y          float64 `form:"y" binding:"required"`
	StreetName string  `form:"st_name"`
	PreType    string  `form:"st_pretyp"`
	PostType   string  `form:"st_postyp"`
	PostMod    string  `form:"st_posmod"`
}

// CandidateResponse represents one candidate centerline.
type CandidateResponse struct {
	Feature  FeatureResponse `json:"feature"`
	Distance float64         `json:"distance"`
}

// NearestResponse represents the nearest-centerline response.
type NearestResponse struct {
	Candidates []CandidateResponse `json:"candidates"`
	Count      int                 `json:"count"`
}

// Nearest handles GET /api/v1/centerlines/nearest.
func (h *CenterlineHandler) Nearest(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req NearestRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httperr.ValidationError(c, validationErrors)
			return
		}
		httperr.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	if log != nil {
		log.Info("Processing nearest-centerline request", map[string]interface{}{
			"x":       req.X,
			"y":       req.Y,
			"st_name": req.StreetName,
		})
	}

	candidates, err := h.finder.FindCandidates(c.Request.Context(), orb.Point{req.X, req.Y}, req.attrs())
	if err != nil {
		if errors.Is(err, centerline.ErrNoCenterline) || errors.Is(err, centerline.ErrLadderExhausted) {
			httperr.NotFound(c, "No road centerline found near this location")
			return
		}
		httperr.InternalServerError(c, "Failed to resolve centerlines", err)
		return
	}

	resp := NearestResponse{
		Candidates: make([]CandidateResponse, 0, len(candidates)),
		Count:      len(candidates),
	}
	for _, cand := range candidates {
		resp.Candidates = append(resp.Candidates, CandidateResponse{
			Feature:  featureResponse(cand.Feature),
			Distance: cand.Distance,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// attrs converts the street name query parameters into a resolver attribute
// map, dropping empty values.
func (r NearestRequest) attrs() map[string]interface{} {
	attrs := map[string]interface{}{}
	for name, value := range map[string]string{
		schema.FldStName:   r.StreetName,
		schema.FldStPreTyp: r.PreType,
		schema.FldStPosTyp: r.PostType,
		schema.FldStPosMod: r.PostMod,
	} {
		if value != "" {
			attrs[name] = value
		}
	}
	return attrs
}
