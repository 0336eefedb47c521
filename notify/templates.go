package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/murat7074/elisishop/store"
)

// Email subjects
const (
	SubjectOrderConfirmed = "Siparişiniz Onaylandı"
	SubjectNewOrder       = "Yeni Sipariş"
)

var orderTemplate = template.Must(template.New("order").Funcs(template.FuncMap{
	"lira": func(v float64) string { return fmt.Sprintf("%.2f TL", v) },
}).Parse(`
<h2>{{.Heading}}</h2>
<p>{{.Intro}}</p>
<p><strong>Sipariş No:</strong> {{.Order.ID}}</p>

<h3>Ürünler</h3>
<table border="1" cellpadding="6" cellspacing="0">
	<tr><th>Ürün</th><th>Adet</th><th>Renkler</th><th>Fiyat</th></tr>
	{{range .Order.Items}}
	<tr>
		<td>{{.Name}}</td>
		<td>{{.Amount}}</td>
		<td>{{range .Colors}}{{.Color}} ({{.Amount}}) {{end}}</td>
		<td>{{lira .Price}}</td>
	</tr>
	{{end}}
</table>

<h3>Tutar</h3>
<p>
	Ürünler: {{lira .Order.ItemsPrice}}<br>
	Vergi: {{lira .Order.TaxAmount}}<br>
	Kargo: {{lira .Order.ShippingAmount}}<br>
	<strong>Toplam: {{lira .Order.TotalAmount}}</strong>
</p>

<h3>Teslimat Adresi</h3>
<p>
	{{.Order.Shipping.Address}}<br>
	{{.Order.Shipping.City}} {{.Order.Shipping.ZipCode}}<br>
	{{.Order.Shipping.Country}}<br>
	Tel: {{.Order.Shipping.PhoneNo}}
</p>
`))

type orderTemplateData struct {
	Heading string
	Intro   string
	Order   *store.Order
}

func renderOrder(data orderTemplateData) (string, error) {
	var buf bytes.Buffer
	if err := orderTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render order template: %w", err)
	}
	return buf.String(), nil
}

// CustomerOrderEmail builds the confirmation email sent to the buyer
func CustomerOrderEmail(order *store.Order, toEmail, toName string) (Email, error) {
	html, err := renderOrder(orderTemplateData{
		Heading: "Siparişiniz Onaylandı",
		Intro:   fmt.Sprintf("Merhaba %s, ödemeniz alındı ve siparişiniz hazırlanıyor.", toName),
		Order:   order,
	})
	if err != nil {
		return Email{}, err
	}

	return Email{
		To:      toEmail,
		ToName:  toName,
		Subject: SubjectOrderConfirmed,
		HTML:    html,
	}, nil
}

// SellerOrderEmail builds the notification email sent to the seller
func SellerOrderEmail(order *store.Order, sellerEmail, sellerName, buyerName string) (Email, error) {
	html, err := renderOrder(orderTemplateData{
		Heading: "Yeni Sipariş",
		Intro:   fmt.Sprintf("%s yeni bir sipariş verdi.", buyerName),
		Order:   order,
	})
	if err != nil {
		return Email{}, err
	}

	return Email{
		To:      sellerEmail,
		ToName:  sellerName,
		Subject: SubjectNewOrder,
		HTML:    html,
	}, nil
}
