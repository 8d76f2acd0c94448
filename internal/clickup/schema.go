package clickup

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"checkout-relay/internal/metrics"
)

// LogicalKey names an order attribute that may have a custom field on the list.
type LogicalKey string

const (
	KeyCPF           LogicalKey = "cpf"
	KeyPhone         LogicalKey = "phone"
	KeyBirthDate     LogicalKey = "birthDate"
	KeyAddress       LogicalKey = "address"
	KeyPaymentMethod LogicalKey = "paymentMethod"
	KeyProducts      LogicalKey = "products"
	KeyAmount        LogicalKey = "amount"
	KeyOrigin        LogicalKey = "origin"
	KeyCourses       LogicalKey = "courses"
	KeyServices      LogicalKey = "services"
	KeyOrderCode     LogicalKey = "orderCode"
)

// matchRule lists folded field names matched exactly, then as substrings.
type matchRule struct {
	key      LogicalKey
	exact    []string
	contains []string
}

// Keys are resolved in this order, so a field claimed by an earlier key is
// not considered for later ones.
var matchRules = []matchRule{
	{KeyCPF, []string{"cpf"}, []string{"cpf"}},
	{KeyPhone, []string{"telefone", "phone", "whatsapp", "celular"}, []string{"telefone", "phone", "whatsapp", "celular"}},
	{KeyBirthDate, []string{"data de nascimento", "nascimento", "birth date", "birthdate"}, []string{"nascimento", "birth"}},
	{KeyAddress, []string{"endereco", "endereco completo", "address"}, []string{"endereco", "address"}},
	{KeyPaymentMethod, []string{"forma de pagamento", "pagamento", "payment method"}, []string{"pagamento", "payment"}},
	{KeyProducts, []string{"produtos", "produto", "products"}, []string{"produto", "product"}},
	{KeyAmount, []string{"valor", "valor total", "amount", "total"}, []string{"valor", "amount", "total"}},
	{KeyOrigin, []string{"origem", "origin"}, []string{"origem", "origin"}},
	{KeyCourses, []string{"cursos", "curso", "courses"}, []string{"curso", "course"}},
	{KeyServices, []string{"servicos", "servico", "services"}, []string{"servico", "service"}},
	{KeyOrderCode, []string{"codigo do pedido", "order code", "nsu"}, []string{"codigo do pedido", "order code", "nsu", "pedido"}},
}

// LogicalKeys returns every key in resolution order.
func LogicalKeys() []LogicalKey {
	keys := make([]LogicalKey, len(matchRules))
	for i, r := range matchRules {
		keys[i] = r.key
	}
	return keys
}

// Schema is the per-request view of a list: the status to create tasks in and
// the custom field resolved for each logical key.
type Schema struct {
	// Status is the canonical status string, "" when none matched.
	Status string
	Fields map[LogicalKey]Field

	Matched []LogicalKey
	Missing []LogicalKey

	StatusErr error
	FieldsErr error
}

// Field returns the field resolved for key.
func (s *Schema) Field(key LogicalKey) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	f, ok := s.Fields[key]
	return f, ok
}

type schemaSource interface {
	GetList(ctx context.Context, listID string) (*List, error)
	GetFields(ctx context.Context, listID string) ([]Field, error)
}

// Resolver fetches list statuses and custom fields concurrently.
type Resolver struct {
	source       schemaSource
	targetStatus string
	metrics      *metrics.Registry
	logger       *slog.Logger
}

// NewResolver creates a resolver matching statuses against targetStatus.
func NewResolver(source schemaSource, targetStatus string, m *metrics.Registry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, targetStatus: targetStatus, metrics: m, logger: logger}
}

// Resolve never fails: a failed fetch leaves its half of the schema empty and
// is recorded on the Schema.
func (r *Resolver) Resolve(ctx context.Context, listID string) *Schema {
	var (
		g      errgroup.Group
		list   *List
		fields []Field
		schema = &Schema{}
	)

	g.Go(func() error {
		list, schema.StatusErr = r.source.GetList(ctx, listID)
		return nil
	})
	g.Go(func() error {
		fields, schema.FieldsErr = r.source.GetFields(ctx, listID)
		return nil
	})
	_ = g.Wait()

	if schema.StatusErr != nil {
		r.logger.WarnContext(ctx, "list status lookup failed",
			slog.String("list_id", listID),
			slog.String("error", schema.StatusErr.Error()),
		)
	} else if list != nil {
		schema.Status = MatchStatus(list.Statuses, r.targetStatus)
		if schema.Status == "" {
			r.logger.WarnContext(ctx, "target status not found on list",
				slog.String("list_id", listID),
				slog.String("target_status", r.targetStatus),
			)
		}
	}

	if schema.FieldsErr != nil {
		r.logger.WarnContext(ctx, "custom field lookup failed",
			slog.String("list_id", listID),
			slog.String("error", schema.FieldsErr.Error()),
		)
	}
	schema.Fields = MatchFields(fields)
	for _, key := range LogicalKeys() {
		_, ok := schema.Fields[key]
		if ok {
			schema.Matched = append(schema.Matched, key)
		} else {
			schema.Missing = append(schema.Missing, key)
		}
		r.metrics.FieldResolved(string(key), ok)
	}
	if len(schema.Missing) > 0 {
		missing := make([]string, len(schema.Missing))
		for i, k := range schema.Missing {
			missing[i] = string(k)
		}
		r.logger.WarnContext(ctx, "custom fields not resolved",
			slog.String("list_id", listID),
			slog.Any("missing", missing),
		)
	}

	return schema
}

// MatchStatus returns the canonical name of the status equal to target after
// folding, or "".
func MatchStatus(statuses []Status, target string) string {
	want := Fold(target)
	if want == "" {
		return ""
	}
	for _, s := range statuses {
		if Fold(s.Status) == want {
			return s.Status
		}
	}
	return ""
}

// MatchFields assigns at most one field to each logical key and each field
// to at most one key. Within a key, exact matches beat substring matches and
// earlier fields beat later ones.
func MatchFields(fields []Field) map[LogicalKey]Field {
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = Fold(f.Name)
	}

	taken := make([]bool, len(fields))
	out := make(map[LogicalKey]Field)

	pick := func(match func(name string) bool) int {
		for i, name := range folded {
			if !taken[i] && name != "" && match(name) {
				return i
			}
		}
		return -1
	}

	for _, rule := range matchRules {
		idx := pick(func(name string) bool { return containsString(rule.exact, name) })
		if idx < 0 {
			idx = pick(func(name string) bool {
				for _, sub := range rule.contains {
					if strings.Contains(name, sub) {
						return true
					}
				}
				return false
			})
		}
		if idx >= 0 {
			taken[idx] = true
			out[rule.key] = fields[idx]
		}
	}
	return out
}

// Fold lower-cases s, strips diacritics and collapses whitespace, so
// "EM PRODUÇÃO" and "em producao" compare equal.
func Fold(s string) string {
	// Transformers and casers keep state; build them per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
