package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	tradeapp "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CallbackSecretHeader carries the shared secret configured with the gateway
const CallbackSecretHeader = "X-Callback-Secret"

// PaymentCallbackResult is the body returned to the gateway
type PaymentCallbackResult struct {
	OrderID          string                  `json:"order_id"`
	AlreadyProcessed bool                    `json:"already_processed"`
	Order            *tradeapp.OrderResponse `json:"order,omitempty"`
}

// PaymentCallbackHandler receives payment gateway notifications. Gateways retry,
// so a reference that was already applied is acknowledged without a second transition.
type PaymentCallbackHandler struct {
	BaseHandler
	orderService *tradeapp.OrderService
	idempotency  shared.IdempotencyStore
	secret       string
	ttl          time.Duration
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler. An empty
// secret disables the header check.
func NewPaymentCallbackHandler(
	orderService *tradeapp.OrderService,
	idempotency shared.IdempotencyStore,
	secret string,
	ttl time.Duration,
) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		orderService: orderService,
		idempotency:  idempotency,
		secret:       secret,
		ttl:          ttl,
	}
}

// Handle confirms or fails the payment of a pending online order.
// POST /payments/callback
func (h *PaymentCallbackHandler) Handle(c *gin.Context) {
	if !h.authorized(c) {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Invalid callback secret")
		return
	}

	var req tradeapp.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	withOrder(c, req.OrderID)

	ctx := c.Request.Context()
	key := callbackKey(req)
	if key != "" {
		done, err := h.idempotency.IsProcessed(ctx, key)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		if done {
			logger.GetGinLogger(c).Info("Duplicate payment callback ignored",
				zap.String("reference", req.Reference),
			)
			h.Success(c, PaymentCallbackResult{OrderID: req.OrderID.String(), AlreadyProcessed: true})
			return
		}
	}

	order, err := h.orderService.ConfirmPayment(ctx, req.OrderID, req.Success)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if key != "" {
		if _, err := h.idempotency.MarkProcessed(ctx, key, h.ttl); err != nil {
			// the transition is committed; a replay fails on the state check
			logger.GetGinLogger(c).Warn("Failed to record payment callback",
				zap.String("reference", req.Reference),
				zap.Error(err),
			)
		}
	}
	h.Success(c, PaymentCallbackResult{OrderID: order.ID.String(), Order: order})
}

func (h *PaymentCallbackHandler) authorized(c *gin.Context) bool {
	if h.secret == "" {
		return true
	}
	got := c.GetHeader(CallbackSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func callbackKey(req tradeapp.PaymentCallbackRequest) string {
	if req.Reference == "" {
		return ""
	}
	return "payment:" + req.Reference
}
