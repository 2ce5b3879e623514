package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/middleware"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/repository"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/service"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/pkg/logger"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/pkg/qr"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Card ids arrive unauthenticated from scanned URLs, so the format is kept
// tight: short, printable, no path or query metacharacters.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type loyaltyRoutes struct {
	ls      service.LoyaltyServiceI
	hub     *EventHub
	baseURL string
}

func NewLoyaltyRoutes(handler *gin.RouterGroup, ls service.LoyaltyServiceI, hub *EventHub, a *middleware.Authorization, baseURL string) {
	r := &loyaltyRoutes{ls: ls, hub: hub, baseURL: baseURL}

	h := handler.Group("/loyalty")
	{
		h.GET("/:user_id/status", r.GetStatus)
		h.POST("/:user_id/scan", r.RecordScan)
		h.POST("/:user_id/redeem", r.Redeem)
		h.GET("/:user_id/qr", r.QRCode)
	}

	handler.POST("/cards", r.CreateCard)

	admin := handler.Group("/admin")
	admin.Use(a.AdminOnly())
	{
		admin.GET("/loyalty/:user_id/card", r.CardInfo)
		admin.DELETE("/loyalty/:user_id/reset", r.Reset)
	}
}

func userIDParam(c *gin.Context) (string, bool) {
	userID := c.Param("user_id")
	if !userIDPattern.MatchString(userID) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return "", false
	}
	return userID, true
}

func statusJSON(st *model.Status) gin.H {
	var lastScanAt *int64
	if st.LastScanAt != nil {
		ts := st.LastScanAt.Unix()
		lastScanAt = &ts
	}

	return gin.H{
		"user_id":          st.UserID,
		"stamps":           st.Stamps,
		"target":           st.Target,
		"remaining":        st.Remaining,
		"reward_available": st.RewardAvailable,
		"last_scan_at":     lastScanAt,
	}
}

func (r *loyaltyRoutes) GetStatus(c *gin.Context) {
	log := logger.Logger()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	st, err := r.ls.GetStatus(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to get status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get status"})
		return
	}

	c.JSON(http.StatusOK, statusJSON(st))
}

func (r *loyaltyRoutes) RecordScan(c *gin.Context) {
	log := logger.Logger()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	res, err := r.ls.RecordScan(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to record scan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record scan"})
		return
	}

	if res.Accepted && !res.AlreadyRewarded {
		eventType := EventStampRecorded
		if res.RewardJustUnlocked {
			eventType = EventRewardUnlocked
		}
		r.hub.Publish(eventType, res.Status)
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted":             res.Accepted,
		"wait_seconds":         res.WaitSeconds,
		"reward_just_unlocked": res.RewardJustUnlocked,
		"already_rewarded":     res.AlreadyRewarded,
		"message":              res.Message,
		"status":               statusJSON(res.Status),
	})
}

func (r *loyaltyRoutes) Redeem(c *gin.Context) {
	log := logger.Logger()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	res, err := r.ls.Redeem(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to redeem reward", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to redeem reward"})
		return
	}

	if res.Redeemed {
		r.hub.Publish(EventRewardRedeemed, res.Status)
	}

	c.JSON(http.StatusOK, gin.H{
		"redeemed": res.Redeemed,
		"message":  res.Message,
		"status":   statusJSON(res.Status),
	})
}

func (r *loyaltyRoutes) Reset(c *gin.Context) {
	log := logger.Logger()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	st, err := r.ls.Reset(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to reset progress", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset progress"})
		return
	}

	r.hub.Publish(EventProgressReset, st)

	c.JSON(http.StatusOK, statusJSON(st))
}

func (r *loyaltyRoutes) CardInfo(c *gin.Context) {
	log := logger.Logger()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	user, st, err := r.ls.GetCard(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no card associated with the provided user_id"})
			return
		}
		log.Error("failed to get card info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get card info"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    user.ID,
		"created_at": user.CreatedAt.Unix(),
		"status":     statusJSON(st),
	})
}

// QRCode serves the PNG a customer scans: it encodes the scan URL for this
// card. Requesting it also registers the card.
func (r *loyaltyRoutes) QRCode(c *gin.Context) {
	log := logger.Logger()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	if _, err := r.ls.GetStatus(c.Request.Context(), userID); err != nil {
		log.Error("failed to ensure progress for qr", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate qr code"})
		return
	}

	scanURL := fmt.Sprintf("%s/api/v1/loyalty/%s/scan", r.baseURL, userID)
	png, err := qr.Encode(scanURL, qr.DefaultSize)
	if err != nil {
		log.Error("failed to encode qr code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate qr code"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (r *loyaltyRoutes) CreateCard(c *gin.Context) {
	log := logger.Logger()

	userID := uuid.NewString()
	st, err := r.ls.GetStatus(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to create card", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create card"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id": userID,
		"status":  statusJSON(st),
	})
}
