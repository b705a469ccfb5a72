package controllers

import (
	"net/http"

	"github.com/JayKadi/ecommerce-project/middlewares"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the order API. ws may be nil when no live feed is served.
func RegisterRoutes(r *gin.Engine, oc *OrderController, ws http.Handler, jwtSecret string) {
	r.GET("/api/delivery-zones", oc.ListDeliveryZones)
	r.GET("/api/payments/verify", oc.VerifyPayment)
	r.POST("/api/payments/verify", oc.VerifyPayment)
	r.POST("/dead-letter", oc.HandleDeadLetter)

	authGroup := r.Group("/api")
	authGroup.Use(middlewares.AuthMiddleware(jwtSecret))
	{
		authGroup.POST("/orders", oc.CreateOrder)
		authGroup.GET("/orders", oc.GetUserOrders)
		authGroup.GET("/orders/:id", oc.GetOrderDetails)
		authGroup.POST("/orders/:id/payment", oc.InitiatePayment)
		authGroup.PUT("/orders/:id/status", middlewares.OperatorOnly(), oc.UpdateOrderStatus)
	}

	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middlewares.AuthMiddleware(jwtSecret), middlewares.OperatorOnly())
	{
		adminGroup.GET("/orders", oc.ListAllOrders)
		adminGroup.GET("/orders/export", oc.ExportOrders)
		adminGroup.GET("/orders/:id/history", oc.GetOrderHistory)
		adminGroup.GET("/stats", oc.GetDashboardStats)
	}

	if ws != nil {
		r.GET("/ws/orders", middlewares.AuthMiddleware(jwtSecret), middlewares.OperatorOnly(), gin.WrapH(ws))
	}
}
