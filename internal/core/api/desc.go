package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rulekeeper.v1.RuleService"

// RuleServiceServer is the server API for RuleService.
type RuleServiceServer interface {
	TestRule(context.Context, *TestRuleRequest) (*TestRuleResponse, error)
	SaveRule(context.Context, *SaveRuleRequest) (*SaveRuleResponse, error)
	GetRule(context.Context, *GetRuleRequest) (*StoredRule, error)
	ListRules(context.Context, *ListRulesRequest) (*ListRulesResponse, error)
	DeleteRule(context.Context, *DeleteRuleRequest) (*DeleteRuleResponse, error)
	EvaluateStored(context.Context, *EvaluateStoredRequest) (*EvaluateStoredResponse, error)
	ListFields(context.Context, *ListFieldsRequest) (*ListFieldsResponse, error)
	ListOperators(context.Context, *ListOperatorsRequest) (*ListOperatorsResponse, error)
}

// unaryMethod adapts a typed RuleServiceServer method to grpc.MethodDesc.
func unaryMethod[Req, Resp any](name string, call func(RuleServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(RuleServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes RuleService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("TestRule", RuleServiceServer.TestRule),
		unaryMethod("SaveRule", RuleServiceServer.SaveRule),
		unaryMethod("GetRule", RuleServiceServer.GetRule),
		unaryMethod("ListRules", RuleServiceServer.ListRules),
		unaryMethod("DeleteRule", RuleServiceServer.DeleteRule),
		unaryMethod("EvaluateStored", RuleServiceServer.EvaluateStored),
		unaryMethod("ListFields", RuleServiceServer.ListFields),
		unaryMethod("ListOperators", RuleServiceServer.ListOperators),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rulekeeper/v1/rule_service",
}

// RegisterRuleServiceServer registers srv on s.
func RegisterRuleServiceServer(s grpc.ServiceRegistrar, srv RuleServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RuleServiceClient calls RuleService over a connection using the JSON codec.
type RuleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRuleServiceClient wraps cc.
func NewRuleServiceClient(cc grpc.ClientConnInterface) *RuleServiceClient {
	return &RuleServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RuleServiceClient) TestRule(ctx context.Context, in *TestRuleRequest, opts ...grpc.CallOption) (*TestRuleResponse, error) {
	return invoke[TestRuleResponse](ctx, c.cc, "TestRule", in, opts)
}

func (c *RuleServiceClient) SaveRule(ctx context.Context, in *SaveRuleRequest, opts ...grpc.CallOption) (*SaveRuleResponse, error) {
	return invoke[SaveRuleResponse](ctx, c.cc, "SaveRule", in, opts)
}

func (c *RuleServiceClient) GetRule(ctx context.Context, in *GetRuleRequest, opts ...grpc.CallOption) (*StoredRule, error) {
	return invoke[StoredRule](ctx, c.cc, "GetRule", in, opts)
}

func (c *RuleServiceClient) ListRules(ctx context.Context, in *ListRulesRequest, opts ...grpc.CallOption) (*ListRulesResponse, error) {
	return invoke[ListRulesResponse](ctx, c.cc, "ListRules", in, opts)
}

func (c *RuleServiceClient) DeleteRule(ctx context.Context, in *DeleteRuleRequest, opts ...grpc.CallOption) (*DeleteRuleResponse, error) {
	return invoke[DeleteRuleResponse](ctx, c.cc, "DeleteRule", in, opts)
}

func (c *RuleServiceClient) EvaluateStored(ctx context.Context, in *EvaluateStoredRequest, opts ...grpc.CallOption) (*EvaluateStoredResponse, error) {
	return invoke[EvaluateStoredResponse](ctx, c.cc, "EvaluateStored", in, opts)
}

func (c *RuleServiceClient) ListFields(ctx context.Context, in *ListFieldsRequest, opts ...grpc.CallOption) (*ListFieldsResponse, error) {
	return invoke[ListFieldsResponse](ctx, c.cc, "ListFields", in, opts)
}

func (c *RuleServiceClient) ListOperators(ctx context.Context, in *ListOperatorsRequest, opts ...grpc.CallOption) (*ListOperatorsResponse, error) {
	return invoke[ListOperatorsResponse](ctx, c.cc, "ListOperators", in, opts)
}
