package controllers

import (
	"errors"
	"net/http"

	"github.com/JayKadi/ecommerce-project/services"
	"github.com/gin-gonic/gin"
)

// respondError writes a classified service error. Unclassified errors are
// logged and answered with a generic 500. extra is merged into the body.
func (oc *OrderController) respondError(c *gin.Context, err error, extra gin.H) {
	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}

	var se *services.Error
	if !errors.As(err, &se) || se.HTTPStatus() == http.StatusInternalServerError {
		oc.log.WithContext(c.Request.Context()).WithError(err).
			WithField("path", c.Request.URL.Path).Error("Request failed")
		body["error"] = "Internal server error"
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	if se.HTTPStatus() == http.StatusBadGateway {
		oc.log.WithContext(c.Request.Context()).WithError(err).Warn("Payment gateway call failed")
	}
	body["error"] = se.Message
	body["code"] = se.Code
	if se.Field != "" {
		body["field"] = se.Field
	}
	if se.ProductID != 0 {
		body["product_id"] = se.ProductID
	}
	c.JSON(se.HTTPStatus(), body)
}
