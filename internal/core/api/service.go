// Package api implements the gRPC RuleService: ad-hoc rule testing, rule
// storage per tenant, stored-rule evaluation and the builder's field and
// operator catalogs.
package api

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/metric"

	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RuleStore is the persistence the service needs. Implemented by *db.RuleStore.
type RuleStore interface {
	Save(ctx context.Context, rec *db.RuleRecord) error
	Get(ctx context.Context, tenantID string, id types.RuleID) (*db.RuleRecord, error)
	List(ctx context.Context, tenantID string, et types.EntityType) ([]db.RuleRecord, error)
	Delete(ctx context.Context, tenantID string, id types.RuleID) error
}

// RuleService implements RuleServiceServer.
// Thin orchestration layer delegating to the rules engine and the store.
type RuleService struct {
	engine  *rules.Engine
	store   RuleStore
	cfg     *config.ServerConfig
	logger  hclog.Logger
	metrics *evalMetrics
}

// Option configures a RuleService.
type Option func(*RuleService) error

// WithMeterProvider records metrics against mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *RuleService) error {
		m, err := newEvalMetrics(mp)
		if err != nil {
			return err
		}
		s.metrics = m
		return nil
	}
}

// NewRuleService creates the service. logger may be nil.
func NewRuleService(engine *rules.Engine, store RuleStore, cfg *config.ServerConfig, logger hclog.Logger, opts ...Option) (*RuleService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	s := &RuleService{
		engine: engine,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if s.metrics == nil {
		m, err := newEvalMetrics(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		s.metrics = m
	}
	return s, nil
}

// tenant returns the authenticated tenant or an Internal status when the
// auth interceptor did not run.
func tenant(ctx context.Context) (string, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return "", status.Error(codes.Internal, "missing tenant_id in context")
	}
	return tenantID, nil
}

// parseRule decodes rule JSON within the configured size limit.
func (s *RuleService) parseRule(data []byte) (*types.Group, error) {
	if len(data) > s.cfg.MaxRuleBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", types.ErrRuleTooLarge, len(data), s.cfg.MaxRuleBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: rule is empty", types.ErrInvalidJSON)
	}
	return types.ParseRule(data)
}

func (s *RuleService) checkEntitySize(n int) error {
	if n > s.cfg.MaxEntityBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", types.ErrEntityTooLarge, n, s.cfg.MaxEntityBytes)
	}
	return nil
}

var _ RuleServiceServer = (*RuleService)(nil)
