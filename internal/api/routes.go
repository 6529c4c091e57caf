package api

import (
	"errors"
	"net/http"
	"strings"

	"content-market/internal/middleware"
	"content-market/internal/response"
	"content-market/internal/services"
	"content-market/pkg/logging"

	"github.com/gin-gonic/gin"
)

// Services are the components behind the operator API.
type Services struct {
	Entitlement *services.EntitlementResolver
	Coupons     *services.CouponEngine
	Checkout    *services.CheckoutService
	Delivery    *services.DeliveryDispatcher
	Content     *services.ContentService
	Fanout      *services.NotificationFanout
	Accounts    *services.AccountService
	Localizer   services.Localizer
}

// Options tune request handling.
type Options struct {
	OperatorAPIKey             string
	CallbackSecret             string
	DefaultLanguage            string
	DefaultSelfDestructSeconds int
	MaxNotificationRetries     int
}

// Handler serves the operator API.
type Handler struct {
	svc  Services
	opts Options
}

func NewHandler(svc Services, opts Options) *Handler {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	return &Handler{svc: svc, opts: opts}
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		// Payment provider callback, authenticated by its body signature
		api.POST("/payments/callback", h.PaymentCallback)

		operator := api.Group("")
		operator.Use(middleware.OperatorAuthMiddleware(h.opts.OperatorAPIKey))
		{
			operator.GET("/access", h.CheckAccess)

			operator.POST("/coupons/quote", h.QuoteCoupon)
			operator.POST("/coupons", h.CreateCoupon)
			operator.POST("/coupons/:id/deactivate", h.DeactivateCoupon)

			operator.POST("/purchases", h.CreatePurchase)
			operator.POST("/deliveries", h.Deliver)
			operator.POST("/content", h.PublishContent)
			operator.GET("/notifications/stats", h.NotificationStats)

			operator.POST("/users", h.EnsureUser)
			operator.POST("/creators", h.RegisterCreator)
			operator.POST("/creators/:id/status", h.TransitionCreator)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "content-market",
		})
	})
}

// language picks the caller's language from ?lang or Accept-Language.
func (h *Handler) language(c *gin.Context) string {
	if lang := c.Query("lang"); lang != "" {
		return lang
	}
	if accept := c.GetHeader("Accept-Language"); accept != "" {
		tag := strings.TrimSpace(strings.SplitN(accept, ",", 2)[0])
		tag = strings.SplitN(tag, ";", 2)[0]
		if tag != "" && tag != "*" {
			return tag
		}
	}
	return h.opts.DefaultLanguage
}

func (h *Handler) text(c *gin.Context, key string) string {
	if h.svc.Localizer == nil {
		return key
	}
	return h.svc.Localizer.GetString(h.language(c), key)
}

// reject answers a business rejection with its localized reason.
func (h *Handler) reject(c *gin.Context, status int, reason string, data interface{}) {
	response.JSON(c, status, response.Rejected(reason, h.text(c, reason), data))
}

// fail maps a service error onto an HTTP answer.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if reason := services.ReasonOf(err); reason != "" {
		h.reject(c, status, reason, nil)
		return
	}

	if status >= http.StatusInternalServerError {
		logging.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		response.ErrorJSON(c, status, "Internal error")
		return
	}
	response.ErrorJSON(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrDuplicateOperation):
		return http.StatusConflict
	case errors.Is(err, services.ErrPreconditionNotMet):
		return http.StatusPreconditionFailed
	case errors.Is(err, services.ErrGatewayFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
}
