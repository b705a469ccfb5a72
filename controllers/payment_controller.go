package controllers

import (
	"net/http"
	"strings"

	"github.com/JayKadi/ecommerce-project/models"
	"github.com/gin-gonic/gin"
)

// InitiatePayment opens (or returns the existing) payment session for the caller's order.
func (oc *OrderController) InitiatePayment(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := oc.orders.GetOrder(ctx, id, requester(c)); err != nil {
		oc.respondError(c, err, nil)
		return
	}

	handle, err := oc.orders.InitiatePayment(ctx, id)
	if err != nil {
		oc.respondError(c, err, gin.H{"order_id": id})
		return
	}
	c.JSON(http.StatusOK, handle)
}

type verifyRequest struct {
	OrderTrackingID        string `json:"OrderTrackingId" form:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference" form:"OrderMerchantReference"`
}

// VerifyPayment serves both the customer redirect (GET) and the gateway's
// instant payment notification (POST). Parameters come from the query string
// or, for POST, a JSON body.
func (oc *OrderController) VerifyPayment(c *gin.Context) {
	defer recordOperation(c, "verify_payment")

	var req verifyRequest
	_ = c.ShouldBindQuery(&req)
	if req.OrderMerchantReference == "" && c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if strings.TrimSpace(req.OrderMerchantReference) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "OrderMerchantReference is required",
			"code":  "validation_error",
			"field": "OrderMerchantReference",
		})
		return
	}

	order, err := oc.orders.VerifyPayment(c.Request.Context(), req.OrderTrackingID, req.OrderMerchantReference)
	if err != nil {
		oc.respondError(c, err, gin.H{"merchant_reference": req.OrderMerchantReference})
		return
	}

	status := http.StatusOK
	if order.PaymentStatus == models.PaymentPending {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"order_id":           order.ID,
		"merchant_reference": order.MerchantReference,
		"payment_status":     order.PaymentStatus,
		"status":             order.Status,
	})
}
