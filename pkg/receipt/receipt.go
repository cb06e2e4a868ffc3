package receipt

import (
	"bytes"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nazeru/order-console-go/pkg/contracts"
)

const width = 32

var printer = message.NewPrinter(language.English)

func Amount(v int64) string {
	return printer.Sprintf("%d", v)
}

var tmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"amount": Amount,
	"line":   func() string { return strings.Repeat("-", width) },
	"mul":    func(q int32, p int64) int64 { return int64(q) * p },
}).Parse(`{{line}}
{{.StoreName}}
{{.StoreAddress}}
{{line}}
Order #{{.OrderNumber}}
{{.FormattedCreatedAt}}
{{- if .TableNumber}}
Table: {{.TableNumber}}
{{- end}}
Phone: {{.Phone}}
{{line}}
{{- range .Items}}
{{.Name}} x{{.Quantity}}  {{amount (mul .Quantity .UnitPrice)}}
{{- end}}
{{line}}
TOTAL  {{amount .Amount}}
{{- if .PaymentID}}
Paid online
{{- end}}
{{- if .SpecialRequests}}
{{line}}
Requests: {{.SpecialRequests}}
{{- end}}
{{line}}
`))

func Render(o contracts.PrintOrder) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
