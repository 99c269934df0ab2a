package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/centerline"
	"github.com/stwalsh4118/ng911/internal/httperr"
	"github.com/stwalsh4118/ng911/internal/middleware"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/validation"
)

// AddressCreator builds and persists new address points.
type AddressCreator interface {
	Create(ctx context.Context, pt orb.Point, attrs map[string]interface{}) (*models.Feature, error)
}

// AddressValidator runs the validation rule battery against stored addresses.
type AddressValidator interface {
	ValidateOID(ctx context.Context, oid int64) (*validation.Result, error)
}

// AddressHandler handles address point HTTP requests.
type AddressHandler struct {
	creator   AddressCreator
	validator AddressValidator
}

// NewAddressHandler creates a new AddressHandler instance.
func NewAddressHandler(creator AddressCreator, validator AddressValidator) *AddressHandler {
	return &AddressHandler{
		creator:   creator,
		validator: validator,
	}
}

// CreateRequest is the body for the create-address endpoint. Coordinates are
// in the deployment's projected spatial reference.
type CreateRequest struct {
	X          float64                `json:"x" binding:"required"`
	Y          float64                `json:"y" binding:"required"`
	Attributes map[string]interface{} `json:"attributes"`
}

// ValidateRequest is the body for the validate-address endpoint.
type ValidateRequest struct {
	OID int64 `json:"oid" binding:"required,gt=0"`
}

// FeatureResponse represents a feature in API responses.
type FeatureResponse struct {
	OID        int64                  `json:"oid"`
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   json.RawMessage        `json:"geometry,omitempty"`
}

// ValidateResponse represents the outcome of one address validation.
type ValidateResponse struct {
	NENAID    string   `json:"nena_guid"`
	OID       int64    `json:"oid"`
	Score     float64  `json:"score"`
	FlagCount int      `json:"flag_count"`
	Flags     []string `json:"flags"`
}

// Create handles POST /api/v1/addresses.
func (h *AddressHandler) Create(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httperr.ValidationError(c, validationErrors)
			return
		}
		httperr.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing create-address request", map[string]interface{}{
			"x": req.X,
			"y": req.Y,
		})
	}

	f, err := h.creator.Create(c.Request.Context(), orb.Point{req.X, req.Y}, req.Attributes)
	if err != nil {
		httperr.InternalServerError(c, "Failed to create address point", err)
		return
	}

	c.JSON(http.StatusCreated, featureResponse(f))
}

// Validate handles POST /api/v1/addresses/validate.
func (h *AddressHandler) Validate(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httperr.ValidationError(c, validationErrors)
			return
		}
		httperr.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing validate-address request", map[string]interface{}{
			"oid": req.OID,
		})
	}

	res, err := h.validator.ValidateOID(c.Request.Context(), req.OID)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrAddressNotFound):
			httperr.NotFound(c, "No address with this OID")
		case errors.Is(err, centerline.ErrNoCenterline), errors.Is(err, centerline.ErrLadderExhausted):
			httperr.Unprocessable(c, "No road centerline could be resolved for this address", map[string]interface{}{
				"oid": req.OID,
			})
		default:
			httperr.InternalServerError(c, "Failed to validate address", err)
		}
		return
	}

	flags := make([]string, 0, res.FlagCount())
	for _, f := range res.RaisedFlags() {
		flags = append(flags, string(f))
	}

	c.JSON(http.StatusOK, ValidateResponse{
		NENAID:    res.NENAID,
		OID:       res.SourceOID,
		Score:     res.Score(),
		FlagCount: res.FlagCount(),
		Flags:     flags,
	})
}

// featureResponse converts a feature into its API representation.
func featureResponse(f *models.Feature) FeatureResponse {
	resp := FeatureResponse{
		OID:        f.OID,
		Attributes: f.Attributes(),
	}
	if f.Geometry != nil {
		if data, err := models.MarshalGeometry(f.Geometry); err == nil {
			resp.Geometry = json.RawMessage(data)
		}
	}
	return resp
}
