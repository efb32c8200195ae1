package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rushrental/carbooking/internal/domain"
	"github.com/rushrental/carbooking/internal/drivers"
	"github.com/rushrental/carbooking/internal/service/wizard"
)

const dateLayout = "2006-01-02"

type DraftHandler struct {
	service wizard.DraftUseCase
}

func NewDraftHandler(service wizard.DraftUseCase) *DraftHandler {
	return &DraftHandler{service: service}
}

func (h *DraftHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.start)
	router.PUT("/:id/options", h.setOptions)
	router.PUT("/:id/drivers", h.setDrivers)
	router.POST("/:id/payment", h.beginPayment)
	router.POST("/:id/confirm", h.confirm)
	router.DELETE("/:id", h.cancel)
}

type startDraftRequest struct {
	RenterID          int64  `json:"renter_id"`
	CarID             int64  `json:"car_id" binding:"required"`
	PickupLocationID  int64  `json:"pickup_location_id" binding:"required"`
	DropoffLocationID int64  `json:"dropoff_location_id" binding:"required"`
	PickupDate        string `json:"pickup_date" binding:"required"`
	ReturnDate        string `json:"return_date" binding:"required"`
	DriverAge         int    `json:"driver_age" binding:"required"`
}

type setOptionsRequest struct {
	Options map[int64]int `json:"options"`
}

type setDriversRequest struct {
	Drivers []drivers.RawEntry `json:"drivers"`
}

type beginPaymentRequest struct {
	Mode string `json:"mode"`
}

type costResponse struct {
	BaseCents    int64 `json:"base_cents"`
	OptionsCents int64 `json:"options_cents"`
	TotalCents   int64 `json:"total_cents"`
}

type draftResponse struct {
	DraftID   string       `json:"draft_id"`
	Stage     string       `json:"stage"`
	Cost      costResponse `json:"cost"`
	ExpiresAt string       `json:"expires_at"`
}

type bookingResponse struct {
	BookingID  int64  `json:"booking_id"`
	Status     string `json:"status"`
	TotalCents int64  `json:"total_cents"`
}

func (h *DraftHandler) start(c *gin.Context) {
	var req startDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := time.Parse(dateLayout, req.PickupDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pickup_date", "field": "pickup_date"})
		return
	}
	ret, err := time.Parse(dateLayout, req.ReturnDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid return_date", "field": "return_date"})
		return
	}

	draft, err := h.service.StartDraft(c.Request.Context(), wizard.StartDraftInput{
		RenterID:          req.RenterID,
		CarID:             req.CarID,
		PickupLocationID:  req.PickupLocationID,
		DropoffLocationID: req.DropoffLocationID,
		PickupDate:        pickup,
		ReturnDate:        ret,
		DriverAge:         req.DriverAge,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDraftResponse(draft))
}

func (h *DraftHandler) setOptions(c *gin.Context) {
	var req setOptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.service.SetOptions(c.Request.Context(), c.Param("id"), req.Options)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDraftResponse(draft))
}

func (h *DraftHandler) setDrivers(c *gin.Context) {
	var req setDriversRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.service.SetDrivers(c.Request.Context(), c.Param("id"), req.Drivers)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDraftResponse(draft))
}

func (h *DraftHandler) beginPayment(c *gin.Context) {
	var req beginPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := domain.PaymentModeIntent
	if req.Mode == string(domain.PaymentModeHosted) {
		mode = domain.PaymentModeHosted
	}

	handle, err := h.service.BeginPayment(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, handle)
}

func (h *DraftHandler) confirm(c *gin.Context) {
	booking, err := h.service.ConfirmPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookingResponse{
		BookingID:  booking.ID,
		Status:     string(booking.Status),
		TotalCents: booking.TotalCents,
	})
}

func (h *DraftHandler) cancel(c *gin.Context) {
	if err := h.service.CancelDraft(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func toDraftResponse(draft *domain.DraftBooking) draftResponse {
	return draftResponse{
		DraftID: draft.ID,
		Stage:   string(draft.Stage),
		Cost: costResponse{
			BaseCents:    draft.Cost.BaseCents,
			OptionsCents: draft.Cost.OptionsCents,
			TotalCents:   draft.Cost.TotalCents,
		},
		ExpiresAt: draft.ExpiresAt.Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, err error) {
	var vErr *domain.ValidationError
	var pErr *domain.PaymentError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Code, "field": vErr.Field})
	case errors.As(err, &pErr):
		// Recoverable: the client stays on the payment step and may retry.
		c.JSON(http.StatusPaymentRequired, gin.H{"error": pErr.Error(), "recoverable": true})
	case errors.Is(err, domain.ErrDraftNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking session expired, start a new draft"})
	case errors.Is(err, domain.ErrStageConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCarNotFound), errors.Is(err, domain.ErrCarUnavailable), errors.Is(err, domain.ErrLocationNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
