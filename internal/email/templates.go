package email

import (
	"html/template"
	"strings"
	"time"
)

// LowStockPart is one part in a low-stock alert
type LowStockPart struct {
	PartID         string
	RemainingStock int
	MinimumStock   int
}

// LowStockAlert lists the parts one service order pushed to a low level
type LowStockAlert struct {
	ServiceID  string
	Parts      []LowStockPart
	OccurredAt time.Time
}

var lowStockTemplate = template.Must(template.New("low-stock").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #c0392b; padding: 20px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 22px;">Low stock alert</h1>
	</div>
	<div style="padding: 20px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Service order <strong style="font-family: monospace;">{{.ServiceID}}</strong> left these parts at or below their minimum stock on {{.OccurredAt.Format "2006-01-02 15:04"}} UTC.</p>
		<table style="width: 100%; border-collapse: collapse;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 10px; text-align: left;">Part</th>
					<th style="padding: 10px; text-align: right;">In stock</th>
					<th style="padding: 10px; text-align: right;">Minimum</th>
				</tr>
			</thead>
			<tbody>
			{{- range .Parts}}
				<tr>
					<td style="padding: 10px; border-bottom: 1px solid #eee; font-family: monospace;">{{.PartID}}</td>
					<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{.RemainingStock}}</td>
					<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{.MinimumStock}}</td>
				</tr>
			{{- end}}
			</tbody>
		</table>
		<p style="font-size: 12px; color: #999; margin-bottom: 0;">This message is sent automatically by the service order system.</p>
	</div>
</body>
</html>`))

// BuildLowStockBody renders the HTML body of a low-stock alert
func BuildLowStockBody(alert LowStockAlert) (string, error) {
	var b strings.Builder
	if err := lowStockTemplate.Execute(&b, alert); err != nil {
		return "", err
	}
	return b.String(), nil
}
