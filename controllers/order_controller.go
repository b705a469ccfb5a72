package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JayKadi/ecommerce-project/middlewares"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx"
)

// OrderService is the lifecycle the handlers drive.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, cart []models.CartLine, shipping models.ShippingForm) (*models.Order, error)
	InitiatePayment(ctx context.Context, orderID int64) (services.PaymentHandle, error)
	VerifyPayment(ctx context.Context, trackingID, merchantReference string) (*models.Order, error)
	GetOrder(ctx context.Context, id int64, who services.Requester) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID string) ([]*models.Order, error)
	ListOrders(ctx context.Context, status string) ([]*models.Order, error)
	Advance(ctx context.Context, orderID int64, target models.OrderStatus, actor string) (*models.Order, error)
	OrderHistory(ctx context.Context, id int64) ([]models.OrderStatusChange, error)
	DashboardStats(ctx context.Context, now time.Time) (models.DashboardStats, error)
	ExportOrders(ctx context.Context) (*xlsx.File, error)
}

// ZoneLister serves the public delivery zone table.
type ZoneLister interface {
	List(ctx context.Context) ([]models.DeliveryZone, error)
}

type OrderController struct {
	orders OrderService
	zones  ZoneLister
	log    *logrus.Logger
}

func NewOrderController(orders OrderService, zones ZoneLister, log *logrus.Logger) *OrderController {
	return &OrderController{orders: orders, zones: zones, log: log}
}

type createOrderRequest struct {
	Items []models.CartLine `json:"items" binding:"dive"`
	models.ShippingForm
}

func requester(c *gin.Context) services.Requester {
	return services.Requester{ID: c.GetString(middlewares.ContextUserID), Operator: middlewares.IsOperator(c)}
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return 0, false
	}
	return id, true
}

func recordOperation(c *gin.Context, operation string) {
	status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
	middlewares.RecordOrderOperation(operation, status)
}

// CreateOrder builds the order from the cart and opens its payment session.
// When the gateway fails the order still exists; the response carries its id
// so the client can retry POST /api/orders/:id/payment.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	defer recordOperation(c, "create")

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
		return
	}

	ctx := c.Request.Context()
	order, err := oc.orders.CreateOrder(ctx, c.GetString(middlewares.ContextUserID), req.Items, req.ShippingForm)
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}

	handle, err := oc.orders.InitiatePayment(ctx, order.ID)
	if err != nil {
		oc.respondError(c, err, gin.H{"order_id": order.ID, "merchant_reference": order.MerchantReference})
		return
	}
	order.PaymentReference = handle.TrackingID
	order.PaymentRedirectURL = handle.RedirectURL

	c.JSON(http.StatusCreated, gin.H{
		"order_id":             order.ID,
		"merchant_reference":   order.MerchantReference,
		"payment_redirect_url": handle.RedirectURL,
		"order":                order,
	})
}

func (oc *OrderController) GetUserOrders(c *gin.Context) {
	defer recordOperation(c, "list")

	orders, err := oc.orders.ListCustomerOrders(c.Request.Context(), c.GetString(middlewares.ContextUserID))
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) GetOrderDetails(c *gin.Context) {
	defer recordOperation(c, "details")

	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := oc.orders.GetOrder(c.Request.Context(), id, requester(c))
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus moves an order along the fulfillment chain or cancels it.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var request struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
		return
	}
	target, ok := models.ParseOrderStatus(request.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status " + strconv.Quote(request.Status), "code": "validation_error"})
		return
	}

	order, err := oc.orders.Advance(c.Request.Context(), id, target, c.GetString(middlewares.ContextUserID))
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, order)
}

// HandleDeadLetter records a dead-lettered order message reported by an operator tool.
func (oc *OrderController) HandleDeadLetter(c *gin.Context) {
	defer recordOperation(c, "dead_letter")

	var deadLetter struct {
		OrderID int64  `json:"order_id"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&deadLetter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oc.log.WithFields(logrus.Fields{
		"order_id": deadLetter.OrderID,
		"reason":   deadLetter.Reason,
	}).Warn("Dead letter reported")
	c.JSON(http.StatusOK, gin.H{"message": "Dead letter processed"})
}
