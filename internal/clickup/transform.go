package clickup

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"checkout-relay/internal/model"
)

// Origin is the value written to the origin custom field.
const Origin = "site"

const notInformed = "Não informado"

// TaskOptions are the list-wide settings applied to every task.
type TaskOptions struct {
	Priority int // 0 leaves priority unset
	Tags     []string
}

// TaskName is "Pedido - {customer name}".
func TaskName(customerName string) string {
	return "Pedido - " + strings.TrimSpace(customerName)
}

// BuildTask assembles the task for a confirmed order. Custom fields are set
// only for keys present in schema whose value is non-empty and coercible.
func BuildTask(req *model.TaskRequest, schema *Schema, opts TaskOptions) *CreateTaskRequest {
	task := &CreateTaskRequest{
		Name:                TaskName(req.CustomerName()),
		MarkdownDescription: renderDescription(req),
		Tags:                taskTags(opts.Tags, string(req.Method())),
	}
	if schema != nil {
		task.Status = schema.Status
	}
	if opts.Priority > 0 {
		p := opts.Priority
		task.Priority = &p
	}

	values := fieldValues(req)
	for _, key := range LogicalKeys() {
		field, ok := schema.Field(key)
		if !ok {
			continue
		}
		v, ok := values[key]
		if !ok {
			continue
		}
		if coerced, ok := coerce(field, v); ok {
			task.CustomFields = append(task.CustomFields, CustomFieldValue{ID: field.ID, Value: coerced})
		}
	}
	return task
}

// fieldValue is a custom field candidate: text always, number when the
// value is numeric by nature.
type fieldValue struct {
	text   string
	number *decimal.Decimal
}

func fieldValues(req *model.TaskRequest) map[LogicalKey]fieldValue {
	values := make(map[LogicalKey]fieldValue)
	set := func(key LogicalKey, text string) {
		if text = strings.TrimSpace(text); text != "" {
			values[key] = fieldValue{text: text}
		}
	}

	if c := req.Customer; c != nil {
		set(KeyCPF, c.CPF)
		set(KeyPhone, c.Phone)
		set(KeyBirthDate, c.BirthDate)
	}
	set(KeyAddress, req.ShippingAddress().OneLine())
	if m := req.Method(); m != "" {
		set(KeyPaymentMethod, m.Label())
	}

	var all, courses, services []string
	for _, it := range req.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		all = append(all, name)
		if it.Type.IsCourse() {
			courses = append(courses, name)
		} else {
			services = append(services, name)
		}
	}
	set(KeyProducts, strings.Join(all, ", "))
	set(KeyCourses, strings.Join(courses, ", "))
	set(KeyServices, strings.Join(services, ", "))

	if total := req.Total(); total > 0 {
		amount := model.FromMinorUnits(total)
		values[KeyAmount] = fieldValue{text: model.FormatBRL(total), number: &amount}
	}
	set(KeyOrigin, Origin)
	set(KeyOrderCode, req.OrderNSU)
	return values
}

// coerce converts v to the JSON value ClickUp expects for field's type.
func coerce(field Field, v fieldValue) (interface{}, bool) {
	switch field.Type {
	case FieldDropDown:
		want := Fold(v.text)
		for _, opt := range field.TypeConfig.Options {
			if Fold(opt.Name) == want {
				return opt.ID, true
			}
		}
		return nil, false
	case FieldNumber, FieldCurrency:
		n := v.number
		if n == nil {
			d, err := decimal.NewFromString(v.text)
			if err != nil {
				return nil, false
			}
			n = &d
		}
		return json.Number(n.String()), true
	case FieldDate:
		t, ok := parseDate(v.text)
		if !ok {
			return nil, false
		}
		return t.UnixMilli(), true
	default:
		return v.text, true
	}
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func taskTags(base []string, method string) []string {
	tags := make([]string, 0, len(base)+1)
	seen := make(map[string]bool)
	for _, t := range append(append([]string{}, base...), method) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

// renderDescription writes the payment, customer, address and product sections.
func renderDescription(req *model.TaskRequest) string {
	var b strings.Builder

	b.WriteString("## Pagamento\n\n")
	line(&b, "Valor", model.FormatBRL(req.Total()))
	line(&b, "Forma de pagamento", req.Method().Label())
	line(&b, "Pedido", req.OrderNSU)
	line(&b, "Transação", req.TransactionNSU)
	line(&b, "Slug", req.Slug)
	if req.ReceiptURL != "" {
		line(&b, "Comprovante", fmt.Sprintf("[abrir](%s)", req.ReceiptURL))
	}

	b.WriteString("\n## Cliente\n\n")
	line(&b, "Nome", req.CustomerName())
	if c := req.Customer; c != nil {
		line(&b, "E-mail", c.Email)
		line(&b, "Telefone", c.Phone)
		line(&b, "CPF", c.CPF)
		line(&b, "Data de nascimento", c.BirthDate)
	}

	b.WriteString("\n## Endereço\n\n")
	if addr := req.ShippingAddress().OneLine(); addr != "" {
		b.WriteString(addr + "\n")
	} else {
		b.WriteString(notInformed + "\n")
	}

	b.WriteString("\n## Produtos\n\n")
	if len(req.Items) == 0 {
		b.WriteString(notInformed + "\n")
	}
	for _, it := range req.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		kind := "Serviço"
		if it.Type.IsCourse() {
			kind = "Curso"
		}
		fmt.Fprintf(&b, "- %dx %s (%s) - %s\n", qty, strings.TrimSpace(it.Name), kind,
			model.FormatBRL(model.ToMinorUnits(it.Price)))
	}
	return b.String()
}

// line writes "- **label:** value", skipping empty values.
func line(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value == "" {
		return
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, value)
}
