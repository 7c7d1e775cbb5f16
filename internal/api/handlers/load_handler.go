package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logistics/internal/model"
	"example.com/backstage/services/logistics/internal/service"
	"example.com/backstage/services/logistics/internal/tracing"
)

// LoadHandler handles load lifecycle HTTP requests
type LoadHandler struct {
	transitions service.TransitionService
	tracer      tracing.Tracer
}

// NewLoadHandler creates a new load handler
func NewLoadHandler(transitions service.TransitionService, tracer tracing.Tracer) *LoadHandler {
	return &LoadHandler{
		transitions: transitions,
		tracer:      tracer,
	}
}

// RegisterRoutes registers the load routes
func (h *LoadHandler) RegisterRoutes(router *gin.Engine) {
	loads := router.Group("/loads")
	{
		loads.POST("", h.CreateLoad)
		loads.GET("", h.ListLoads)
		loads.GET("/:id", h.GetLoad)
		loads.POST("/:id/transition", h.Transition)
		loads.PATCH("/:id/attributes", h.UpdateAttributes)
		loads.GET("/:id/targets", h.AllowedTargets)
		loads.GET("/:id/timeline", h.Timeline)
		loads.GET("/:id/time-in-status", h.TimeInStatus)
		loads.GET("/:id/state-age", h.StateAge)
	}
	router.GET("/transitions", h.TransitionsInRange)
}

// TransitionRequest is the body of POST /loads/:id/transition.
type TransitionRequest struct {
	TargetStatus string `json:"target_status" binding:"required"`
	UserID       *uint  `json:"user_id"`
	Note         string `json:"note"`
}

func loadID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid load id"})
		return 0, false
	}
	return uint(id), true
}

// CreateLoad registers a new load request
func (h *LoadHandler) CreateLoad(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-load")
	defer h.tracer.EndTransaction(txn)

	var req service.CreateLoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	load, err := h.transitions.CreateLoad(c.Request.Context(), &req)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, load)
}

// ListLoads returns every load in the requested status
func (h *LoadHandler) ListLoads(c *gin.Context) {
	status, err := model.NormalizeStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loads, err := h.transitions.LoadsByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "loads": loads})
}

// GetLoad returns a single load
func (h *LoadHandler) GetLoad(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-get-load")
	defer h.tracer.EndTransaction(txn)

	id, ok := loadID(c)
	if !ok {
		return
	}

	load, err := h.transitions.GetLoad(c.Request.Context(), id)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, load)
}

// Transition moves a load to the requested target status
func (h *LoadHandler) Transition(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-load-transition")
	defer h.tracer.EndTransaction(txn)

	id, ok := loadID(c)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracer.AddAttribute(txn, "load_id", id)
	h.tracer.AddAttribute(txn, "target_status", req.TargetStatus)

	load, err := h.transitions.Transition(c.Request.Context(), &service.TransitionRequest{
		LoadID:       id,
		TargetStatus: req.TargetStatus,
		UserID:       req.UserID,
		Note:         req.Note,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, load)
}

// UpdateAttributes merges checkpoint evidence into the load
func (h *LoadHandler) UpdateAttributes(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-load-attributes")
	defer h.tracer.EndTransaction(txn)

	id, ok := loadID(c)
	if !ok {
		return
	}

	var patch model.CheckpointBag
	if err := c.ShouldBindJSON(&patch); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	load, err := h.transitions.UpdateAttributes(c.Request.Context(), id, patch)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, load)
}

// AllowedTargets lists the statuses the load can move to next
func (h *LoadHandler) AllowedTargets(c *gin.Context) {
	id, ok := loadID(c)
	if !ok {
		return
	}

	targets, err := h.transitions.AllowedTargets(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"load_id": id, "targets": targets})
}

// Timeline returns the load's full transition history
func (h *LoadHandler) Timeline(c *gin.Context) {
	id, ok := loadID(c)
	if !ok {
		return
	}

	timeline, err := h.transitions.Timeline(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"load_id": id, "timeline": timeline})
}

// TimeInStatus returns the cumulative time a load has spent in a status
func (h *LoadHandler) TimeInStatus(c *gin.Context) {
	id, ok := loadID(c)
	if !ok {
		return
	}

	status, err := model.NormalizeStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.transitions.TimeInStatus(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"load_id": id,
		"status":  status,
		"seconds": d.Seconds(),
	})
}

// TransitionsInRange lists transitions committed inside a time window,
// optionally filtered by target status
func (h *LoadHandler) TransitionsInRange(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
		return
	}

	var toStatus *model.LoadStatus
	if raw := c.Query("to_status"); raw != "" {
		status, err := model.NormalizeStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		toStatus = &status
	}

	transitions, err := h.transitions.TransitionsInRange(c.Request.Context(), start, end, toStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitions": transitions})
}

// StateAge returns the load's current status and how long it has held it
func (h *LoadHandler) StateAge(c *gin.Context) {
	id, ok := loadID(c)
	if !ok {
		return
	}

	status, age, err := h.transitions.CurrentStateAge(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"load_id": id,
		"status":  status,
		"seconds": age.Seconds(),
	})
}
