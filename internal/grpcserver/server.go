// Package grpcserver implements the TrackerService gRPC server.
//
// It delegates all business logic to the lifecycle, query and analytics
// engines and handles only the gRPC transport concerns: metadata
// extraction, error mapping, and conversion between domain values and
// google.protobuf.Struct messages.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zulfie1003/InternTrack/internal/analytics"
	"github.com/zulfie1003/InternTrack/internal/application"
	"github.com/zulfie1003/InternTrack/internal/auth"
	"github.com/zulfie1003/InternTrack/internal/kanban"
	"github.com/zulfie1003/InternTrack/internal/query"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "jobmate.tracker.v1.TrackerService"

// Server implements TrackerService.
type Server struct {
	svc       *kanban.Service
	query     *query.Engine
	analytics *analytics.Engine
	resolver  *auth.Resolver
	log       *logrus.Entry
	now       func() time.Time
}

// NewServer constructs a gRPC Server backed by the given engines.
func NewServer(svc *kanban.Service, q *query.Engine, a *analytics.Engine, resolver *auth.Resolver, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		svc:       svc,
		query:     q,
		analytics: a,
		resolver:  resolver,
		log:       log.WithField("component", "grpcserver"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts the service on gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// ListApplications accepts status, jobType, priority, search, sort, page and
// pageSize.
func (s *Server) ListApplications(ctx context.Context, p application.Principal, req *structpb.Struct) (any, error) {
	filter, err := parseFilter(req)
	if err != nil {
		return nil, err
	}
	return s.query.List(ctx, p, query.Params{
		Filter:   filter,
		Sort:     application.ParseSort(str(req, "sort")),
		Page:     num(req, "page", 1),
		PageSize: num(req, "pageSize", query.DefaultPageSize),
	})
}

func (s *Server) GetApplication(ctx context.Context, p application.Principal, req *structpb.Struct) (any, error) {
	rec, err := s.svc.Get(ctx, p, str(req, "id"))
	if err != nil {
		return nil, err
	}
	return application.Project(rec, s.now()), nil
}

// CreateApplication takes the same fields as the REST body.
func (s *Server) CreateApplication(ctx context.Context, p application.Principal, req *structpb.Struct) (any, error) {
	var in kanban.CreateInput
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	rec, err := s.svc.Create(ctx, p, in)
	if err != nil {
		return nil, err
	}
	return application.Project(rec, s.now()), nil
}

func (s *Server) ChangeStatus(ctx context.Context, p application.Principal, req *structpb.Struct) (any, error) {
	if str(req, "status") == "" {
		return nil, &application.ValidationError{Msg: "status is required"}
	}
	rec, err := s.svc.ChangeStatus(ctx, p, str(req, "id"), str(req, "status"), str(req, "notes"))
	if err != nil {
		return nil, err
	}
	return application.Project(rec, s.now()), nil
}

func (s *Server) BulkDelete(ctx context.Context, p application.Principal, req *structpb.Struct) (any, error) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}
	n, err := s.svc.BulkDelete(ctx, p, body.IDs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"deletedCount": n}, nil
}

func (s *Server) Dashboard(ctx context.Context, p application.Principal, _ *structpb.Struct) (any, error) {
	return s.analytics.Dashboard(ctx, p)
}

func (s *Server) StatusStats(ctx context.Context, p application.Principal, _ *structpb.Struct) (any, error) {
	stats, err := s.analytics.StatusStats(ctx, p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"stats": stats}, nil
}

func (s *Server) Timeline(ctx context.Context, p application.Principal, req *structpb.Struct) (any, error) {
	tl, err := s.analytics.Timeline(ctx, p, num(req, "days", analytics.DefaultTimelineDays))
	if err != nil {
		return nil, err
	}
	return map[string]any{"timeline": tl}, nil
}

func (s *Server) ResponseRate(ctx context.Context, p application.Principal, _ *structpb.Struct) (any, error) {
	return s.analytics.ResponseRate(ctx, p)
}

func (s *Server) SourceAnalytics(ctx context.Context, p application.Principal, _ *structpb.Struct) (any, error) {
	stats, err := s.analytics.SourceAnalytics(ctx, p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sourceStats": stats}, nil
}

// ─── Service descriptor ──────────────────────────────────────────────────────

type rpcFunc func(s *Server, ctx context.Context, p application.Principal, req *structpb.Struct) (any, error)

// trackerServer is the handler type checked by grpc.RegisterService.
type trackerServer interface {
	ListApplications(context.Context, application.Principal, *structpb.Struct) (any, error)
	GetApplication(context.Context, application.Principal, *structpb.Struct) (any, error)
	CreateApplication(context.Context, application.Principal, *structpb.Struct) (any, error)
	ChangeStatus(context.Context, application.Principal, *structpb.Struct) (any, error)
	BulkDelete(context.Context, application.Principal, *structpb.Struct) (any, error)
	Dashboard(context.Context, application.Principal, *structpb.Struct) (any, error)
	StatusStats(context.Context, application.Principal, *structpb.Struct) (any, error)
	Timeline(context.Context, application.Principal, *structpb.Struct) (any, error)
	ResponseRate(context.Context, application.Principal, *structpb.Struct) (any, error)
	SourceAnalytics(context.Context, application.Principal, *structpb.Struct) (any, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*trackerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListApplications", (*Server).ListApplications),
		unary("GetApplication", (*Server).GetApplication),
		unary("CreateApplication", (*Server).CreateApplication),
		unary("ChangeStatus", (*Server).ChangeStatus),
		unary("BulkDelete", (*Server).BulkDelete),
		unary("Dashboard", (*Server).Dashboard),
		unary("StatusStats", (*Server).StatusStats),
		unary("Timeline", (*Server).Timeline),
		unary("ResponseRate", (*Server).ResponseRate),
		unary("SourceAnalytics", (*Server).SourceAnalytics),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tracker.proto",
}

// unary adapts fn to a grpc.MethodDesc: it resolves the caller, runs any
// interceptor, and converts the result and error.
func unary(name string, fn rpcFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(structpb.Struct)
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			handler := func(ctx context.Context, r any) (any, error) {
				return s.call(ctx, name, fn, r.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, req, info, handler)
		},
	}
}

func (s *Server) call(ctx context.Context, method string, fn rpcFunc, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.principalFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	out, err := fn(s, ctx, p, req)
	if err != nil {
		return nil, s.toGRPCError(method, err)
	}
	resp, err := toStruct(out)
	if err != nil {
		return nil, s.toGRPCError(method, err)
	}
	return resp, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// principalFromCtx resolves the caller from gRPC metadata: a bearer token in
// authorization, or the x-user-id / x-user-role pair forwarded by the Gateway.
func (s *Server) principalFromCtx(ctx context.Context) (application.Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return application.Principal{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	first := func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	p, err := s.resolver.Resolve(auth.Credentials{
		Authorization: first(auth.HeaderAuthorization),
		UserID:        first(auth.HeaderUserID),
		Role:          first(auth.HeaderUserRole),
	})
	if err != nil {
		return application.Principal{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return p, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func (s *Server) toGRPCError(method string, err error) error {
	var ve *application.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Msg)
	case errors.Is(err, application.ErrNotFound):
		return status.Error(codes.NotFound, application.ErrNotFound.Error())
	case errors.Is(err, application.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	}
	s.log.WithError(err).WithField("method", method).Error("rpc failed")
	return status.Error(codes.Internal, "internal server error")
}

// toStruct converts any JSON-encodable value to a Struct through its JSON
// form, so field names match the REST API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(req *structpb.Struct, dst any) error {
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return &application.ValidationError{Msg: "invalid request"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &application.ValidationError{Msg: "invalid request: " + err.Error()}
	}
	return nil
}

func parseFilter(req *structpb.Struct) (application.Filter, error) {
	f := application.Filter{Search: str(req, "search")}
	var err error
	if v := str(req, "status"); v != "" {
		if f.Status, err = application.ParseStatus(v); err != nil {
			return f, &application.ValidationError{Msg: err.Error()}
		}
	}
	if v := str(req, "jobType"); v != "" {
		if f.JobType, err = application.ParseJobType(v); err != nil {
			return f, &application.ValidationError{Msg: err.Error()}
		}
	}
	if v := str(req, "priority"); v != "" {
		if f.Priority, err = application.ParsePriority(v); err != nil {
			return f, &application.ValidationError{Msg: err.Error()}
		}
	}
	return f, nil
}

func str(req *structpb.Struct, key string) string {
	if v, ok := req.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func num(req *structpb.Struct, key string, def int) int {
	if v, ok := req.GetFields()[key]; ok {
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); isNum {
			return int(v.GetNumberValue())
		}
	}
	return def
}
