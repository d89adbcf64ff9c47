package httpapi

import (
	"bytes"
	"encoding/csv"
	"html/template"
	"strconv"

	"smartledger/backend/internal/domain"
)

// dashboardToCSV flattens the summary into section,key,value rows. Money
// columns are formatted as decimal strings.
func dashboardToCSV(summary domain.DashboardSummary) ([]byte, error) {
	var buf bytes.Buffer
	out := csv.NewWriter(&buf)

	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "generated_at", summary.GeneratedAt},
		{"summary", "orders", strconv.FormatInt(summary.Totals.Orders, 10)},
		{"summary", "items_sold", strconv.FormatInt(summary.Totals.ItemsSold, 10)},
		{"summary", "revenue", domain.FormatCents(summary.Totals.RevenueCents)},
		{"summary", "collected", domain.FormatCents(summary.CollectedCents)},
		{"summary", "outstanding", domain.FormatCents(summary.OutstandingCents)},
		{"summary", "written_off", domain.FormatCents(summary.WrittenOffCents)},
		{"summary", "average_ticket", domain.FormatCents(summary.AverageTicketCents)},
	}
	rows = appendBreakdown(rows, "payment_type", summary.ByPaymentType)
	rows = appendBreakdown(rows, "status", summary.ByStatus)
	rows = appendBreakdown(rows, "product", summary.ByProduct)

	if err := out.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendBreakdown(rows [][]string, section string, breakdown []domain.BreakdownRow) [][]string {
	for _, row := range breakdown {
		rows = append(rows,
			[]string{section, row.Key + "_orders", strconv.FormatInt(row.Orders, 10)},
			[]string{section, row.Key + "_revenue", domain.FormatCents(row.RevenueCents)},
		)
	}
	return rows
}

// Product names are user input; html/template escapes them.
var dashboardHTMLTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"money": domain.FormatCents,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Ledger Dashboard {{.GeneratedAt}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Ledger Dashboard</h2>
  <p>Generated: {{.GeneratedAt}}</p>
  <p>Orders: {{.Totals.Orders}} | Items: {{.Totals.ItemsSold}} | Revenue: {{money .Totals.RevenueCents}} | Average ticket: {{money .AverageTicketCents}}</p>
  <p>Collected: {{money .CollectedCents}} | Outstanding: {{money .OutstandingCents}} | Written off: {{money .WrittenOffCents}}</p>

  <h3>By Payment Type</h3>
  <table>
    <thead><tr><th>Type</th><th>Orders</th><th>Revenue</th></tr></thead>
    <tbody>{{range .ByPaymentType}}<tr><td>{{.Key}}</td><td style="text-align:right;">{{.Orders}}</td><td style="text-align:right;">{{money .RevenueCents}}</td></tr>{{end}}</tbody>
  </table>

  <h3>By Status</h3>
  <table>
    <thead><tr><th>Status</th><th>Orders</th><th>Revenue</th></tr></thead>
    <tbody>{{range .ByStatus}}<tr><td>{{.Key}}</td><td style="text-align:right;">{{.Orders}}</td><td style="text-align:right;">{{money .RevenueCents}}</td></tr>{{end}}</tbody>
  </table>

  <h3>By Product</h3>
  <table>
    <thead><tr><th>Product</th><th>Orders</th><th>Revenue</th></tr></thead>
    <tbody>{{range .ByProduct}}<tr><td>{{.Key}}</td><td style="text-align:right;">{{.Orders}}</td><td style="text-align:right;">{{money .RevenueCents}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func dashboardToPrintableHTML(summary domain.DashboardSummary) string {
	var buf bytes.Buffer
	if err := dashboardHTMLTmpl.Execute(&buf, summary); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
