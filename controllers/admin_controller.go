package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (oc *OrderController) ListAllOrders(c *gin.Context) {
	defer recordOperation(c, "admin_list")

	orders, err := oc.orders.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) GetOrderHistory(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	history, err := oc.orders.OrderHistory(c.Request.Context(), id)
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (oc *OrderController) GetDashboardStats(c *gin.Context) {
	stats, err := oc.orders.DashboardStats(c.Request.Context(), time.Now())
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportOrders streams every order as an .xlsx download.
func (oc *OrderController) ExportOrders(c *gin.Context) {
	defer recordOperation(c, "export")

	file, err := oc.orders.ExportOrders(c.Request.Context())
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")

	if err := file.Write(c.Writer); err != nil {
		oc.log.WithError(err).Error("Failed to write order export")
	}
}

func (oc *OrderController) ListDeliveryZones(c *gin.Context) {
	zones, err := oc.zones.List(c.Request.Context())
	if err != nil {
		oc.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, zones)
}
