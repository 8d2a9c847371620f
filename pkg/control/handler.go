package control

import (
	"context"
	"encoding/json"

	"github.com/core-tools/hsu-game-master/pkg/domain"
	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/supervisor"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func RegisterGRPCServerHandler(grpcServerRegistrar grpc.ServiceRegistrar, handler domain.Contract, logger logging.Logger) {
	grpcServerRegistrar.RegisterService(&controlServiceDesc, &grpcServerHandler{
		handler: handler,
		logger:  logger,
	})
}

type grpcServerHandler struct {
	handler domain.Contract
	logger  logging.Logger
}

func (h *grpcServerHandler) Status(ctx context.Context, request *emptypb.Empty) (*structpb.Struct, error) {
	report, err := h.handler.Status(ctx)
	if err != nil {
		h.logger.Errorf("Status server handler: %v", err)
		return nil, toStatusError(err)
	}

	response, err := reportToStruct(report)
	if err != nil {
		h.logger.Errorf("Status server handler, encoding: %v", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	h.logger.Debugf("Status server handler done")
	return response, nil
}

func (h *grpcServerHandler) RestartServer(ctx context.Context, request *wrapperspb.StringValue) (*emptypb.Empty, error) {
	name := request.GetValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "server name is required")
	}

	if err := h.handler.RestartServer(ctx, name); err != nil {
		h.logger.Errorf("RestartServer server handler, server: %s, error: %v", name, err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("RestartServer server handler done, server: %s", name)
	return &emptypb.Empty{}, nil
}

func toStatusError(err error) error {
	switch {
	case errors.IsNotFoundError(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.IsValidationError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.IsCancelledError(err):
		return status.Error(codes.Unavailable, err.Error())
	case errors.IsTimeoutError(err):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func fromStatusError(err error, name string) error {
	st, ok := status.FromError(err)
	if !ok {
		return errors.NewNetworkError("control request failed", err)
	}
	switch st.Code() {
	case codes.NotFound:
		return errors.NewNotFoundError(st.Message(), nil).WithContext("server", name)
	case codes.InvalidArgument:
		return errors.NewValidationError(st.Message(), nil)
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError(st.Message(), nil)
	case codes.Unavailable, codes.Canceled:
		return errors.NewCancelledError(st.Message(), nil)
	default:
		return errors.NewInternalError(st.Message(), nil)
	}
}

// reportToStruct goes through the JSON form of the report so the wire shape matches the status file
func reportToStruct(report *supervisor.StatusReport) (*structpb.Struct, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

func structToReport(response *structpb.Struct) (*supervisor.StatusReport, error) {
	data, err := json.Marshal(response.AsMap())
	if err != nil {
		return nil, err
	}
	report := &supervisor.StatusReport{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, err
	}
	return report, nil
}
