package server

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

const testSecretID = "fedcba9876543210fedcba9876543210"

var testSecret = []byte("server-test-secret-0123456789abcdef")

type harness struct {
	client  *api.RuleServiceClient
	conn    *grpc.ClientConn
	queries *db.Queries
	key     string
}

func startServer(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = db.NewMigrator(conn, nil).Up(ctx)
	require.NoError(t, err)
	queries, err := db.LoadQueries(conn)
	require.NoError(t, err)

	registry, err := rules.DefaultRegistry()
	require.NoError(t, err)
	cfg := config.DefaultServerConfig()
	svc, err := api.NewRuleService(rules.NewEngine(registry), db.NewRuleStore(queries), cfg, nil)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries, nil)
	srv, err := NewGRPCServer(cfg, svc, authenticator, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1024 * 1024)
	go srv.Serve(lis)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })

	issued, err := auth.IssueAPIKey(ctx, queries, testSecretID, testSecret, "tenant-a", "test key")
	require.NoError(t, err)

	return &harness{
		client:  api.NewRuleServiceClient(cc),
		conn:    cc,
		queries: queries,
		key:     issued.Key,
	}
}

func withKey(key string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), auth.MetadataKey, key)
}

func TestNewGRPCServer_RequiresDependencies(t *testing.T) {
	registry, err := rules.DefaultRegistry()
	require.NoError(t, err)
	cfg := config.DefaultServerConfig()
	svc, err := api.NewRuleService(rules.NewEngine(registry), db.NewRuleStore(nil), cfg, nil)
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(nil, nil, nil)

	_, err = NewGRPCServer(nil, svc, authenticator, nil)
	assert.Error(t, err)
	_, err = NewGRPCServer(cfg, nil, authenticator, nil)
	assert.Error(t, err)
	_, err = NewGRPCServer(cfg, svc, nil, nil)
	assert.Error(t, err)
}

func TestServer_EndToEnd(t *testing.T) {
	h := startServer(t)
	ctx := withKey(h.key)

	rule := json.RawMessage(`{"id":"root","type":"group","operator":"OR","conditions":[
		{"id":"c1","type":"field","field":"severity","operator":"eq","value":"CRITICAL","values":[]},
		{"id":"c2","type":"field","field":"cvss_score","operator":"gte","value":9,"values":[]}
	]}`)

	saved, err := h.client.SaveRule(ctx, &api.SaveRuleRequest{
		Name: "critical vulns", EntityType: types.EntityVulnerabilities, Rule: rule,
	})
	require.NoError(t, err)

	eval, err := h.client.EvaluateStored(ctx, &api.EvaluateStoredRequest{
		RuleID: saved.RuleID,
		Entity: json.RawMessage(`{"severity":"HIGH","cvss_score":"9.8"}`),
	})
	require.NoError(t, err)
	assert.True(t, eval.Result.Matches)
	require.Len(t, eval.Result.Results, 2)
	assert.False(t, eval.Result.Results[0].Matches)
	assert.True(t, eval.Result.Results[1].Matches)

	listed, err := h.client.ListRules(ctx, &api.ListRulesRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Rules, 1)
	assert.Equal(t, saved.RuleID, listed.Rules[0].RuleID)

	tested, err := h.client.TestRule(ctx, &api.TestRuleRequest{Rule: rule, Entity: "not json"})
	require.NoError(t, err)
	assert.False(t, tested.Result.Matches)
	assert.Equal(t, "Invalid JSON", tested.Result.Details["parseError"])

	ops, err := h.client.ListOperators(ctx, &api.ListOperatorsRequest{ValueType: types.ValueSelect})
	require.NoError(t, err)
	assert.Equal(t, []types.Operator{types.OpEq, types.OpNeq, types.OpIn, types.OpNotIn}, ops.Operators)

	_, err = h.client.DeleteRule(ctx, &api.DeleteRuleRequest{RuleID: saved.RuleID})
	require.NoError(t, err)
	_, err = h.client.GetRule(ctx, &api.GetRuleRequest{RuleID: saved.RuleID})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_Auth(t *testing.T) {
	h := startServer(t)

	_, err := h.client.ListFields(context.Background(), &api.ListFieldsRequest{EntityType: types.EntityActors})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	other, err := auth.GenerateAPIKey(testSecretID)
	require.NoError(t, err)
	_, err = h.client.ListFields(withKey(other), &api.ListFieldsRequest{EntityType: types.EntityActors})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	resp, err := h.client.ListFields(withKey(h.key), &api.ListFieldsRequest{EntityType: types.EntityActors})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Fields)
}

func TestServer_HealthSkipsAuth(t *testing.T) {
	h := startServer(t)

	resp, err := grpc_health_v1.NewHealthClient(h.conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{
		Service: api.ServiceName,
	})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestLoggingInterceptor_RecoversPanic(t *testing.T) {
	interceptor := loggingInterceptor(hclog.NewNullLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestTimeoutInterceptor(t *testing.T) {
	interceptor := timeoutInterceptor(time.Second)
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Deadline"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
		return nil, nil
	})
	require.NoError(t, err)
}
