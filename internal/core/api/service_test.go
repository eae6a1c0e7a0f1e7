package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

const escalatingRuleJSON = `{
	"id": "root", "type": "group", "operator": "AND",
	"conditions": [
		{"id": "c1", "type": "field", "field": "trend_status", "operator": "eq", "value": "ESCALATING", "values": []},
		{"id": "c2", "type": "field", "field": "incidents_7d", "operator": "gt", "value": 5, "values": []}
	]
}`

// memStore is an in-memory RuleStore keyed by tenant and rule id.
type memStore struct {
	mu    sync.Mutex
	rules map[string]db.RuleRecord
	err   error
}

func newMemStore() *memStore {
	return &memStore{rules: make(map[string]db.RuleRecord)}
}

func storeKey(tenantID string, id types.RuleID) string {
	return tenantID + "/" + string(id)
}

func (m *memStore) Save(ctx context.Context, rec *db.RuleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	now := time.Now().UTC()
	if existing, ok := m.rules[storeKey(rec.TenantID, rec.RuleID)]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.rules[storeKey(rec.TenantID, rec.RuleID)] = *rec
	return nil
}

func (m *memStore) Get(ctx context.Context, tenantID string, id types.RuleID) (*db.RuleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.rules[storeKey(tenantID, id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return &rec, nil
}

func (m *memStore) List(ctx context.Context, tenantID string, et types.EntityType) ([]db.RuleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []db.RuleRecord{}
	for _, rec := range m.rules {
		if rec.TenantID == tenantID && (et == "" || rec.EntityType == et) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, tenantID string, id types.RuleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rules[storeKey(tenantID, id)]; !ok {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	delete(m.rules, storeKey(tenantID, id))
	return nil
}

type fixture struct {
	svc    *RuleService
	store  *memStore
	reader *sdkmetric.ManualReader
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := rules.DefaultRegistry()
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	store := newMemStore()
	svc, err := NewRuleService(rules.NewEngine(registry), store, config.DefaultServerConfig(), nil, WithMeterProvider(mp))
	require.NoError(t, err)

	return &fixture{
		svc:    svc,
		store:  store,
		reader: reader,
		ctx:    auth.WithTenantID(context.Background(), "tenant-a"),
	}
}

// counterTotal sums every data point of an int64 counter.
func (f *fixture) counterTotal(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is %T", name, m.Data)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func assertCode(t *testing.T, want codes.Code, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), "error: %v", err)
}

func TestNewRuleService_RequiresDependencies(t *testing.T) {
	registry, err := rules.DefaultRegistry()
	require.NoError(t, err)
	engine := rules.NewEngine(registry)

	_, err = NewRuleService(nil, newMemStore(), config.DefaultServerConfig(), nil)
	assert.Error(t, err)
	_, err = NewRuleService(engine, nil, config.DefaultServerConfig(), nil)
	assert.Error(t, err)
	_, err = NewRuleService(engine, newMemStore(), nil, nil)
	assert.Error(t, err)
}

func TestTestRule_Matches(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.TestRule(f.ctx, &TestRuleRequest{
		Rule:   json.RawMessage(escalatingRuleJSON),
		Entity: `{"trend_status": "ESCALATING", "incidents_7d": 12}`,
	})
	require.NoError(t, err)
	assert.True(t, resp.Result.Matches)
	assert.Len(t, resp.Result.Results, 2)
	assert.Nil(t, resp.Issues)
	assert.Equal(t, int64(1), f.counterTotal(t, "rulekeeper_evaluations_total"))
}

func TestTestRule_MalformedEntity(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.TestRule(f.ctx, &TestRuleRequest{
		Rule:   json.RawMessage(escalatingRuleJSON),
		Entity: `{"trend_status": `,
	})
	require.NoError(t, err)
	assert.False(t, resp.Result.Matches)
	assert.Equal(t, "Invalid JSON", resp.Result.Details["parseError"])
	assert.NotEmpty(t, resp.Result.Error)
	assert.Equal(t, int64(1), f.counterTotal(t, "rulekeeper_entity_parse_errors_total"))
	assert.Equal(t, int64(0), f.counterTotal(t, "rulekeeper_evaluations_total"))
}

func TestTestRule_ValidatesWhenEntityTypeGiven(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.TestRule(f.ctx, &TestRuleRequest{
		Rule:       json.RawMessage(escalatingRuleJSON),
		Entity:     `{}`,
		EntityType: types.EntityVulnerabilities,
	})
	require.NoError(t, err)
	assert.True(t, rules.HasErrors(resp.Issues))
	assert.False(t, resp.Result.Matches)
}

func TestTestRule_BadInput(t *testing.T) {
	f := newFixture(t)
	small := config.DefaultServerConfig()
	small.MaxEntityBytes = 8
	small.MaxRuleBytes = 1024
	f.svc.cfg = small

	tests := []struct {
		name string
		req  *TestRuleRequest
	}{
		{"malformed rule", &TestRuleRequest{Rule: json.RawMessage(`{"id":`), Entity: `{}`}},
		{"empty rule", &TestRuleRequest{Entity: `{}`}},
		{"condition root", &TestRuleRequest{Rule: json.RawMessage(`{"id":"c","type":"field","field":"x","operator":"eq"}`), Entity: `{}`}},
		{"bad group operator", &TestRuleRequest{Rule: json.RawMessage(`{"id":"r","type":"group","operator":"XOR","conditions":[]}`), Entity: `{}`}},
		{"oversized entity", &TestRuleRequest{Rule: json.RawMessage(escalatingRuleJSON), Entity: `{"name": "too long"}`}},
		{"oversized rule", &TestRuleRequest{Rule: json.RawMessage(`{"id":"` + strings.Repeat("x", 2000) + `"}`), Entity: `{}`}},
		{"unknown entity type", &TestRuleRequest{Rule: json.RawMessage(escalatingRuleJSON), Entity: `{}`, EntityType: "reports"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.TestRule(f.ctx, tt.req)
			assertCode(t, codes.InvalidArgument, err)
		})
	}
}

func TestRuleLifecycle(t *testing.T) {
	f := newFixture(t)

	saved, err := f.svc.SaveRule(f.ctx, &SaveRuleRequest{
		Name:       "  Escalating actors  ",
		EntityType: types.EntityActors,
		Rule:       json.RawMessage(escalatingRuleJSON),
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.RuleID)
	assert.Empty(t, saved.Issues)

	got, err := f.svc.GetRule(f.ctx, &GetRuleRequest{RuleID: saved.RuleID})
	require.NoError(t, err)
	assert.Equal(t, "Escalating actors", got.Name)
	assert.Equal(t, types.EntityActors, got.EntityType)
	root, err := types.ParseRule(got.Rule)
	require.NoError(t, err)
	assert.Len(t, root.Conditions, 2)

	listed, err := f.svc.ListRules(f.ctx, &ListRulesRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Rules, 1)
	assert.NotEmpty(t, listed.ETag)

	eval, err := f.svc.EvaluateStored(f.ctx, &EvaluateStoredRequest{
		RuleID: saved.RuleID,
		Entity: json.RawMessage(`{"trend_status": "ESCALATING", "incidents_7d": "12"}`),
	})
	require.NoError(t, err)
	assert.True(t, eval.Result.Matches)

	// Other tenants cannot see the rule
	other := auth.WithTenantID(context.Background(), "tenant-b")
	_, err = f.svc.GetRule(other, &GetRuleRequest{RuleID: saved.RuleID})
	assertCode(t, codes.NotFound, err)

	_, err = f.svc.DeleteRule(f.ctx, &DeleteRuleRequest{RuleID: saved.RuleID})
	require.NoError(t, err)
	_, err = f.svc.GetRule(f.ctx, &GetRuleRequest{RuleID: saved.RuleID})
	assertCode(t, codes.NotFound, err)
	_, err = f.svc.DeleteRule(f.ctx, &DeleteRuleRequest{RuleID: saved.RuleID})
	assertCode(t, codes.NotFound, err)
}

func TestSaveRule_Update(t *testing.T) {
	f := newFixture(t)

	saved, err := f.svc.SaveRule(f.ctx, &SaveRuleRequest{
		Name: "first", EntityType: types.EntityActors, Rule: json.RawMessage(escalatingRuleJSON),
	})
	require.NoError(t, err)

	before, err := f.svc.ListRules(f.ctx, &ListRulesRequest{})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	again, err := f.svc.SaveRule(f.ctx, &SaveRuleRequest{
		RuleID: saved.RuleID, Name: "second", EntityType: types.EntityActors, Rule: json.RawMessage(escalatingRuleJSON),
	})
	require.NoError(t, err)
	assert.Equal(t, saved.RuleID, again.RuleID)

	after, err := f.svc.ListRules(f.ctx, &ListRulesRequest{})
	require.NoError(t, err)
	require.Len(t, after.Rules, 1)
	assert.Equal(t, "second", after.Rules[0].Name)
	assert.NotEqual(t, before.ETag, after.ETag)
}

func TestSaveRule_Rejects(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  *SaveRuleRequest
	}{
		{"missing name", &SaveRuleRequest{EntityType: types.EntityActors, Rule: json.RawMessage(escalatingRuleJSON)}},
		{"unknown entity type", &SaveRuleRequest{Name: "x", EntityType: "reports", Rule: json.RawMessage(escalatingRuleJSON)}},
		{"bad rule id", &SaveRuleRequest{RuleID: "rule-1", Name: "x", EntityType: types.EntityActors, Rule: json.RawMessage(escalatingRuleJSON)}},
		{"field not in catalog", &SaveRuleRequest{Name: "x", EntityType: types.EntityIOCs, Rule: json.RawMessage(escalatingRuleJSON)}},
		{"malformed rule", &SaveRuleRequest{Name: "x", EntityType: types.EntityActors, Rule: json.RawMessage(`[]`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SaveRule(f.ctx, tt.req)
			assertCode(t, codes.InvalidArgument, err)
		})
	}
	assert.Empty(t, f.store.rules)
}

func TestSaveRule_WarningsDoNotBlock(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.SaveRule(f.ctx, &SaveRuleRequest{
		Name:       "empty",
		EntityType: types.EntityActors,
		Rule:       json.RawMessage(`{"id":"root","type":"group","operator":"OR","conditions":[]}`),
	})
	require.NoError(t, err)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, rules.IssueEmptyGroup, resp.Issues[0].Code)
}

func TestEvaluateStored_CorruptExpression(t *testing.T) {
	f := newFixture(t)
	id := types.NewRuleID()
	require.NoError(t, f.store.Save(context.Background(), &db.RuleRecord{
		RuleID: id, TenantID: "tenant-a", Name: "broken",
		EntityType: types.EntityActors, Expression: `{"id":"c","type":"field"}`,
	}))

	_, err := f.svc.EvaluateStored(f.ctx, &EvaluateStoredRequest{RuleID: id, Entity: json.RawMessage(`{}`)})
	assertCode(t, codes.DataLoss, err)
}

func TestListRules_SkipsCorruptAndFilters(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), &db.RuleRecord{
		RuleID: types.NewRuleID(), TenantID: "tenant-a", Name: "broken",
		EntityType: types.EntityActors, Expression: `{not json`,
	}))
	_, err := f.svc.SaveRule(f.ctx, &SaveRuleRequest{
		Name: "ok", EntityType: types.EntityActors, Rule: json.RawMessage(escalatingRuleJSON),
	})
	require.NoError(t, err)

	resp, err := f.svc.ListRules(f.ctx, &ListRulesRequest{EntityType: types.EntityActors})
	require.NoError(t, err)
	require.Len(t, resp.Rules, 1)
	assert.Equal(t, "ok", resp.Rules[0].Name)

	resp, err = f.svc.ListRules(f.ctx, &ListRulesRequest{EntityType: types.EntityIOCs})
	require.NoError(t, err)
	assert.Empty(t, resp.Rules)

	_, err = f.svc.ListRules(f.ctx, &ListRulesRequest{EntityType: "reports"})
	assertCode(t, codes.InvalidArgument, err)
}

func TestGetRule_UndecodableExpression(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"condition root", `{"id":"c","type":"field","field":"name","operator":"eq","value":"x","values":[]}`},
		{"unknown child type", `{"id":"root","type":"group","operator":"AND","conditions":[{"id":"x","type":"regex"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := types.NewRuleID()
			require.NoError(t, f.store.Save(context.Background(), &db.RuleRecord{
				RuleID: id, TenantID: "tenant-a", Name: "undecodable",
				EntityType: types.EntityActors, Expression: tt.expression,
			}))

			_, err := f.svc.GetRule(f.ctx, &GetRuleRequest{RuleID: id})
			assertCode(t, codes.DataLoss, err)

			resp, err := f.svc.ListRules(f.ctx, &ListRulesRequest{})
			require.NoError(t, err)
			assert.Empty(t, resp.Rules)
		})
	}
}

func TestStoreErrors(t *testing.T) {
	f := newFixture(t)
	f.store.err = fmt.Errorf("connection refused")

	_, err := f.svc.ListRules(f.ctx, &ListRulesRequest{})
	assertCode(t, codes.Unavailable, err)

	f.store.err = context.DeadlineExceeded
	_, err = f.svc.GetRule(f.ctx, &GetRuleRequest{RuleID: types.NewRuleID()})
	assertCode(t, codes.DeadlineExceeded, err)
}

func TestMissingTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListRules(context.Background(), &ListRulesRequest{})
	assertCode(t, codes.Internal, err)
}

func TestCatalogCalls(t *testing.T) {
	f := newFixture(t)

	fields, err := f.svc.ListFields(f.ctx, &ListFieldsRequest{EntityType: types.EntityVulnerabilities})
	require.NoError(t, err)
	assert.NotEmpty(t, fields.Fields)

	fields, err = f.svc.ListFields(f.ctx, &ListFieldsRequest{EntityType: "reports"})
	require.NoError(t, err)
	assert.Empty(t, fields.Fields)

	ops, err := f.svc.ListOperators(f.ctx, &ListOperatorsRequest{ValueType: types.ValueBoolean})
	require.NoError(t, err)
	assert.Equal(t, []types.Operator{types.OpEq}, ops.Operators)

	_, err = f.svc.ListOperators(f.ctx, &ListOperatorsRequest{ValueType: "date"})
	assertCode(t, codes.InvalidArgument, err)
}

func TestComputeETag_OrderIndependent(t *testing.T) {
	now := time.Now()
	a := StoredRule{RuleID: "a", UpdatedAt: now}
	b := StoredRule{RuleID: "b", UpdatedAt: now}

	assert.Equal(t, computeETag([]StoredRule{a, b}), computeETag([]StoredRule{b, a}))
	assert.NotEqual(t, computeETag([]StoredRule{a}), computeETag([]StoredRule{a, b}))
}
