package notify

import (
	"strings"
	"text/template"

	"github.com/JayKadi/ecommerce-project/models"
)

var funcs = template.FuncMap{"title": statusTitle}

func statusTitle(s models.OrderStatus) string {
	v := string(s)
	if v == "" {
		return v
	}
	return strings.ToUpper(v[:1]) + v[1:]
}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(
	`Thank you for your order!

Order #{{.Order.ID}} ({{.Order.MerchantReference}})
Placed: {{.Order.CreatedAt.Format "January 2, 2006 15:04"}}

Items:
{{range .Order.Items}}- {{.ProductName}} x {{.Quantity}} @ {{.UnitPrice.StringFixed 2}} = {{.LineTotal.StringFixed 2}}
{{end}}
Subtotal: {{.Order.Currency}} {{.Order.Subtotal.StringFixed 2}}
Delivery: {{.Order.Currency}} {{.Order.DeliveryFee.StringFixed 2}}
Total:    {{.Order.Currency}} {{.Order.TotalAmount.StringFixed 2}}

Shipping to:
{{.Order.ShippingAddress}}
{{.Order.ShippingCity}} {{.Order.ShippingPostalCode}}
{{.Order.ShippingCountry}}
Phone: {{.Order.PhoneNumber}}
Estimated delivery: {{.Order.EstimatedDeliveryDays}} day(s)

{{.Shop}}
`))

var statusTmpl = template.Must(template.New("status").Funcs(funcs).Parse(
	`Your order #{{.Order.ID}} ({{.Order.MerchantReference}}) has been updated.

{{if .Previous}}Previous status: {{title .Previous}}
{{end}}Current status:  {{title .Order.Status}}
{{- if eq .Order.Status "shipped"}}

Your order is on its way to {{.Order.ShippingCity}}.
{{- else if eq .Order.Status "delivered"}}

Your order has been delivered. Enjoy!
{{- else if eq .Order.Status "cancelled"}}

Your order has been cancelled. Contact us if this is unexpected.
{{- end}}

{{.Shop}}
`))

type view struct {
	Shop     string
	Order    *models.Order
	Previous models.OrderStatus
}

func render(t *template.Template, v view) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}
