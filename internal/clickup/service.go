package clickup

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"checkout-relay/internal/adapter"
	"checkout-relay/internal/metrics"
	"checkout-relay/internal/model"
	"checkout-relay/internal/transport"
)

// DefaultTargetStatus is the status new order tasks are created in.
const DefaultTargetStatus = "EM PRODUÇÃO"

// Config holds ClickUp settings.
type Config struct {
	Token        string
	ListID       string
	WorkspaceID  string
	BaseURL      string
	TargetStatus string
	Priority     int
	Tags         []string
	Transport    transport.Options

	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// Service creates order tasks. It implements adapter.TaskCreator.
type Service struct {
	client   *Client
	resolver *Resolver
	cfg      Config
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// New creates a service. Missing credentials are reported per request by CheckConfig.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if strings.TrimSpace(cfg.TargetStatus) == "" {
		cfg.TargetStatus = DefaultTargetStatus
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.ListID = strings.TrimSpace(cfg.ListID)

	client := NewClient(cfg.BaseURL, cfg.Token, cfg.Transport, cfg.Metrics, cfg.Logger)
	return &Service{
		client:   client,
		resolver: NewResolver(client, cfg.TargetStatus, cfg.Metrics, cfg.Logger),
		cfg:      cfg,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// CheckConfig reports the first missing credential.
func (s *Service) CheckConfig() error {
	if s.cfg.Token == "" {
		return model.NewConfigError("CLICKUP_API_TOKEN")
	}
	if s.cfg.ListID == "" {
		return model.NewConfigError("CLICKUP_LIST_ID")
	}
	return nil
}

// CreateTask resolves the list schema and creates the order's task.
func (s *Service) CreateTask(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error) {
	if err := s.CheckConfig(); err != nil {
		return nil, err
	}
	if err := validateTaskRequest(req); err != nil {
		s.metrics.Task("invalid")
		return nil, err
	}

	schema := s.resolver.Resolve(ctx, s.cfg.ListID)
	payload := BuildTask(req, schema, TaskOptions{Priority: s.cfg.Priority, Tags: s.cfg.Tags})

	s.logger.DebugContext(ctx, "creating order task",
		slog.String("order_nsu", req.OrderNSU),
		slog.String("status", payload.Status),
		slog.Int("custom_fields", len(payload.CustomFields)),
	)

	task, err := s.client.CreateTask(ctx, s.cfg.ListID, payload)
	if err != nil {
		s.logFailure(ctx, "order task creation failed", err,
			slog.String("order_nsu", req.OrderNSU),
			slog.String("transaction_nsu", req.TransactionNSU),
			slog.Int64("amount", req.Total()),
			slog.Int("items", len(req.Items)),
		)
		return nil, err
	}

	s.metrics.Task("created")
	result := s.result(task, payload)
	s.logger.InfoContext(ctx, "order task created",
		slog.String("order_nsu", req.OrderNSU),
		slog.String("task_id", result.TaskID),
		slog.String("status", result.Status),
		slog.Int("matched_fields", len(schema.Matched)),
	)
	return result, nil
}

func validateTaskRequest(req *model.TaskRequest) error {
	if req == nil {
		return model.NewValidationError("body", "required")
	}
	if strings.TrimSpace(req.OrderNSU) == "" {
		return model.NewValidationError("order_nsu", "required")
	}
	if strings.TrimSpace(req.TransactionNSU) == "" {
		return model.NewValidationError("transaction_nsu", "required")
	}
	if req.CustomerName() == "" {
		return model.NewValidationError("customer.name", "required")
	}
	return nil
}

func (s *Service) result(task *Task, payload *CreateTaskRequest) *model.TaskResult {
	res := &model.TaskResult{
		TaskID:   task.ID,
		TaskName: task.Name,
		Status:   task.Status.Status,
		URL:      task.URL,
	}
	if res.TaskName == "" {
		res.TaskName = payload.Name
	}
	if res.Status == "" {
		res.Status = payload.Status
	}
	if res.URL == "" {
		res.URL = s.taskURL(task.ID)
	}
	return res
}

func (s *Service) taskURL(id string) string {
	if s.cfg.WorkspaceID != "" {
		return "https://app.clickup.com/t/" + s.cfg.WorkspaceID + "/" + id
	}
	return "https://app.clickup.com/t/" + id
}

func (s *Service) logFailure(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	result := "failed"
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			slog.String("code", apiErr.Code),
			slog.Int("provider_status", apiErr.ProviderStatus),
			slog.String("details", apiErr.Details),
		)
		if errors.Is(err, model.ErrProviderRejected) {
			result = "rejected"
		}
	}
	attrs = append(attrs, slog.String("list_id", s.cfg.ListID), slog.String("error", err.Error()))
	s.metrics.Task(result)
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

var _ adapter.TaskCreator = (*Service)(nil)
