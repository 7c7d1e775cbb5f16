package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logistics/internal/service"
	"example.com/backstage/services/logistics/internal/tracing"
)

// TripHandler handles trip linking HTTP requests
type TripHandler struct {
	trips  service.TripLinkingService
	tracer tracing.Tracer
}

// NewTripHandler creates a new trip handler
func NewTripHandler(trips service.TripLinkingService, tracer tracing.Tracer) *TripHandler {
	return &TripHandler{
		trips:  trips,
		tracer: tracer,
	}
}

// RegisterRoutes registers the trip routes
func (h *TripHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/loads/:id/link-candidates", h.LinkCandidates)

	trips := router.Group("/trips")
	{
		trips.POST("/link", h.Link)
		trips.GET("/:trip_id/loads", h.LoadsByTrip)
		trips.POST("/:trip_id/assign-resources", h.AssignResources)
	}
}

// LinkRequest is the body of POST /trips/link. Load order is stop order.
type LinkRequest struct {
	LoadIDs []uint `json:"load_ids" binding:"required"`
}

// AssignResourcesRequest is the body of POST /trips/:trip_id/assign-resources.
type AssignResourcesRequest struct {
	DriverID           uint       `json:"driver_id" binding:"required"`
	VehicleID          uint       `json:"vehicle_id" binding:"required"`
	DestinationSiteID  *uint      `json:"destination_site_id"`
	DestinationPlantID *uint      `json:"destination_plant_id"`
	ScheduledAt        *time.Time `json:"scheduled_at"`
	UserID             *uint      `json:"user_id"`
}

// LinkCandidates lists loads that can join the given load in a trip
func (h *TripHandler) LinkCandidates(c *gin.Context) {
	id, ok := loadID(c)
	if !ok {
		return
	}

	candidates, err := h.trips.FindLinkableCandidates(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"load_id": id, "candidates": candidates})
}

// Link consolidates the given loads into one trip
func (h *TripHandler) Link(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-trip-link")
	defer h.tracer.EndTransaction(txn)

	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracer.AddAttribute(txn, "load_count", len(req.LoadIDs))

	tripID, err := h.trips.Link(c.Request.Context(), req.LoadIDs)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trip_id": tripID, "load_ids": req.LoadIDs})
}

// LoadsByTrip lists every load of a trip
func (h *TripHandler) LoadsByTrip(c *gin.Context) {
	tripID := c.Param("trip_id")

	loads, err := h.trips.LoadsByTrip(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "loads": loads})
}

// AssignResources assigns a driver, vehicle and destination to a whole trip
func (h *TripHandler) AssignResources(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-trip-assign-resources")
	defer h.tracer.EndTransaction(txn)

	tripID := c.Param("trip_id")

	var req AssignResourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracer.AddAttribute(txn, "trip_id", tripID)
	h.tracer.AddAttribute(txn, "vehicle_id", req.VehicleID)

	svcReq := &service.AssignResourcesRequest{
		TripID:             tripID,
		DriverID:           req.DriverID,
		VehicleID:          req.VehicleID,
		DestinationSiteID:  req.DestinationSiteID,
		DestinationPlantID: req.DestinationPlantID,
		UserID:             req.UserID,
	}
	if req.ScheduledAt != nil {
		svcReq.ScheduledAt = *req.ScheduledAt
	}

	count, err := h.trips.AssignResources(c.Request.Context(), svcReq)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "loads_assigned": count})
}
