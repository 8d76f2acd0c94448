package clickup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"checkout-relay/internal/model"
)

// RelayOrder posts a flat order summary as a task in the configured status,
// without schema resolution or custom fields.
func (s *Service) RelayOrder(ctx context.Context, sum *model.OrderSummary) (*model.TaskResult, error) {
	if err := s.CheckConfig(); err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, model.NewValidationError("body", "required")
	}
	if strings.TrimSpace(sum.OrderID) == "" {
		return nil, model.NewValidationError("order_id", "required")
	}
	if strings.TrimSpace(sum.NomeCliente) == "" {
		return nil, model.NewValidationError("nome_cliente", "required")
	}

	payload := &CreateTaskRequest{
		Name:                TaskName(sum.NomeCliente),
		MarkdownDescription: renderSummary(sum),
		Status:              s.cfg.TargetStatus,
		Tags:                taskTags(s.cfg.Tags, ""),
	}
	if s.cfg.Priority > 0 {
		p := s.cfg.Priority
		payload.Priority = &p
	}

	task, err := s.client.CreateTask(ctx, s.cfg.ListID, payload)
	if err != nil {
		s.logFailure(ctx, "order relay failed", err, slog.String("order_id", sum.OrderID))
		return nil, err
	}

	s.metrics.Task("relayed")
	result := s.result(task, payload)
	s.logger.InfoContext(ctx, "order relayed",
		slog.String("order_id", sum.OrderID),
		slog.String("task_id", result.TaskID),
	)
	return result, nil
}

func renderSummary(sum *model.OrderSummary) string {
	var b strings.Builder
	b.WriteString("## Pedido\n\n")
	line(&b, "Código", sum.OrderID)
	line(&b, "Data da compra", sum.DataCompra)
	line(&b, "Valor total", sum.ValorTotal)
	line(&b, "Forma de pagamento", sum.FormaPagamento)

	b.WriteString("\n## Cliente\n\n")
	line(&b, "Nome", sum.NomeCliente)
	line(&b, "E-mail", sum.Email)
	line(&b, "Telefone", sum.Telefone)
	line(&b, "Data de nascimento", sum.DataNascimento)

	b.WriteString("\n## Endereço\n\n")
	if addr := strings.TrimSpace(sum.EnderecoCompleto); addr != "" {
		b.WriteString(addr + "\n")
	} else {
		b.WriteString(notInformed + "\n")
	}

	b.WriteString("\n## Produtos\n\n")
	if len(sum.Produtos) == 0 {
		b.WriteString(notInformed + "\n")
	}
	for _, p := range sum.Produtos {
		if p = strings.TrimSpace(p); p != "" {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}
