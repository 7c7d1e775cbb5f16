package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logistics/internal/fsm"
	"example.com/backstage/services/logistics/internal/repository"
	"example.com/backstage/services/logistics/internal/service"
)

// respondError maps domain errors onto HTTP status codes. Rule violations are
// conflicts, missing evidence is unprocessable, unknown references are not
// found; anything unmapped is an internal error and gets logged.
func respondError(c *gin.Context, err error) {
	var (
		invalidTransition *service.InvalidTransitionError
		checkpointErr     *fsm.CheckpointError
		entityNotFound    *service.EntityNotFoundError
		incompatible      *service.IncompatibleVehicleTypeError
		duplicateTrip     *service.DuplicateTripAssignmentError
		tripSize          *service.InsufficientTripSizeError
		validationErrs    validator.ValidationErrors
	)

	switch {
	case errors.As(err, &entityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &checkpointErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      err.Error(),
			"checkpoint": checkpointErr.Checkpoint,
		})
	case errors.As(err, &incompatible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &duplicateTrip):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &tripSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrMissingDestination),
		errors.Is(err, service.ErrAmbiguousOrigin),
		errors.Is(err, service.ErrAmbiguousDestination):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "load was modified concurrently, retry the request"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
