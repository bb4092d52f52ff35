// Package grpcapi exposes a trimmed status/control surface over gRPC:
// current queue depths, aggregate database counts, process start time, and a
// one-way reindex trigger. SPEC_FULL.md §4.16.
//
// There is no .proto source for this service: the messages are carried as
// google.golang.org/protobuf's well-known structpb.Struct and
// timestamppb.Timestamp rather than through protoc-generated request/
// response types, so the wire format stays real protobuf without a
// generated-code step.
package grpcapi

import (
	"context"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/jmylchreest/aidepipe/pkg/pipeline"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/searchindex"
)

var apiLog = log.New(os.Stderr, "[aidepipe:grpcapi] ", log.Ltime)

// controlServer is the handler surface the hand-rolled ServiceDesc below
// dispatches to.
type controlServer interface {
	GetProgress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStartTime(context.Context, *structpb.Struct) (*timestamppb.Timestamp, error)
	Reindex(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Service implements controlServer against a running Pipeline.
type Service struct {
	pipe      *pipeline.Pipeline
	search    *searchindex.Index
	startTime time.Time
}

// NewService builds a Service reporting on pipe. search may be nil, in
// which case Search always reports zero results.
func NewService(pipe *pipeline.Pipeline, search *searchindex.Index) *Service {
	return &Service{pipe: pipe, search: search, startTime: time.Now()}
}

var _ controlServer = (*Service)(nil)

// GetProgress reports the five queue depths plus active-thread count, the
// same shape as spec.md §6's progress message.
func (s *Service) GetProgress(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	d := s.pipe.QueueDepths()
	return structpb.NewStruct(map[string]interface{}{
		"index_request":       float64(d.IndexRequestCount),
		"do_id_map":           float64(d.DoIdMapCount),
		"load_previous_index": float64(d.LoadPreviousIndexCount),
		"on_id_mapped":        float64(d.OnIdMappedCount),
		"on_indexed":          float64(d.OnIndexedCount),
		"active_threads":      float64(d.ActiveThreads),
	})
}

// GetStats reports the query database's aggregate symbol/file counts.
func (s *Service) GetStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	db := s.pipe.Database()
	return structpb.NewStruct(map[string]interface{}{
		"types": float64(len(db.Types)),
		"funcs": float64(len(db.Funcs)),
		"vars":  float64(len(db.Vars)),
		"files": float64(len(db.Files)),
	})
}

// GetStartTime reports when this Service was constructed, i.e. process
// start for a daemon that builds it once at boot.
func (s *Service) GetStartTime(ctx context.Context, _ *structpb.Struct) (*timestamppb.Timestamp, error) {
	return timestamppb.New(s.startTime), nil
}

// Reindex accepts {"paths": [...]} and resubmits each path as a fresh,
// non-interactive IndexRequest. It is fire-and-forget: acceptance only
// means the request reached index_request, not that indexing completed.
func (s *Service) Reindex(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var paths []string
	if lv := in.GetFields()["paths"].GetListValue(); lv != nil {
		for _, v := range lv.GetValues() {
			if p := v.GetStringValue(); p != "" {
				paths = append(paths, p)
			}
		}
	}
	for _, p := range paths {
		s.pipe.SubmitRequest(model.IndexRequest{Path: p})
	}
	apiLog.Printf("reindex: accepted %d path(s)", len(paths))
	return structpb.NewStruct(map[string]interface{}{"accepted": float64(len(paths))})
}

// Search runs a full-text symbol lookup against the search index and
// reports each hit's kind, name, signature and defining file.
func (s *Service) Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	query := in.GetFields()["query"].GetStringValue()
	if query == "" || s.search == nil {
		return structpb.NewStruct(map[string]interface{}{"results": []interface{}{}})
	}
	limit := int(in.GetFields()["limit"].GetNumberValue())

	hits, err := s.search.Search(query, searchindex.Options{Any: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	results := make([]interface{}, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]interface{}{
			"kind":      h.Kind.String(),
			"name":      h.ShortName,
			"signature": h.DetailedName,
			"file":      h.Path,
			"score":     h.Score,
		})
	}
	return structpb.NewStruct(map[string]interface{}{"results": results})
}

// RegisterControlServer attaches srv to registrar under the hand-rolled
// ServiceDesc below.
func RegisterControlServer(registrar grpc.ServiceRegistrar, srv controlServer) {
	registrar.RegisterService(&controlServiceDesc, srv)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: "aidepipe.v1.PipelineControl",
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProgress", Handler: controlGetProgressHandler},
		{MethodName: "GetStats", Handler: controlGetStatsHandler},
		{MethodName: "GetStartTime", Handler: controlGetStartTimeHandler},
		{MethodName: "Reindex", Handler: controlReindexHandler},
		{MethodName: "Search", Handler: controlSearchHandler},
	},
	Metadata: "pkg/pipeline/grpcapi",
}

func controlGetProgressHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).GetProgress(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/aidepipe.v1.PipelineControl/GetProgress"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).GetProgress(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func controlGetStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/aidepipe.v1.PipelineControl/GetStats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).GetStats(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func controlGetStartTimeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).GetStartTime(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/aidepipe.v1.PipelineControl/GetStartTime"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).GetStartTime(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func controlReindexHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Reindex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/aidepipe.v1.PipelineControl/Reindex"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).Reindex(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func controlSearchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/aidepipe.v1.PipelineControl/Search"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).Search(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
