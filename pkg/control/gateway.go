package control

import (
	"context"

	"github.com/core-tools/hsu-game-master/pkg/domain"
	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/supervisor"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func NewGRPCClientGateway(grpcClientConnection grpc.ClientConnInterface, logger logging.Logger) domain.Contract {
	return &grpcClientGateway{
		conn:   grpcClientConnection,
		logger: logger,
	}
}

type grpcClientGateway struct {
	conn   grpc.ClientConnInterface
	logger logging.Logger
}

func (gw *grpcClientGateway) Status(ctx context.Context) (*supervisor.StatusReport, error) {
	response := new(structpb.Struct)
	if err := gw.conn.Invoke(ctx, statusMethod, &emptypb.Empty{}, response); err != nil {
		gw.logger.Errorf("Status client gateway: %v", err)
		return nil, fromStatusError(err, "")
	}

	report, err := structToReport(response)
	if err != nil {
		gw.logger.Errorf("Status client gateway, decoding: %v", err)
		return nil, errors.NewInternalError("failed to decode status report", err)
	}
	gw.logger.Debugf("Status client gateway done")
	return report, nil
}

func (gw *grpcClientGateway) RestartServer(ctx context.Context, name string) error {
	if err := gw.conn.Invoke(ctx, restartServerMethod, wrapperspb.String(name), new(emptypb.Empty)); err != nil {
		gw.logger.Errorf("RestartServer client gateway, server: %s, error: %v", name, err)
		return fromStatusError(err, name)
	}
	gw.logger.Debugf("RestartServer client gateway done, server: %s", name)
	return nil
}
