package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type AccountServer struct {
	types.UnimplementedAccountServiceServer
	accounts *service.AccountService
}

func NewAccountServer(accounts *service.AccountService) *AccountServer {
	return &AccountServer{accounts: accounts}
}

// NewServer builds the gRPC server with the account and health services
// behind the API key interceptors.
func NewServer(accounts *service.AccountService, internal *service.InternalAuthService) *gogrpc.Server {
	server := gogrpc.NewServer(
		gogrpc.ChainUnaryInterceptor(APIKeyUnaryInterceptor(internal)),
		gogrpc.ChainStreamInterceptor(APIKeyStreamInterceptor(internal)),
	)
	types.RegisterAccountServiceServer(server, NewAccountServer(accounts))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(types.AccountService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server
}

func (s *AccountServer) ValidateToken(ctx context.Context, req *types.ValidateTokenRequest) (*types.ValidateTokenResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Validate token validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	actor, err := s.accounts.Authenticate(ctx, strings.TrimSpace(req.GetToken()))
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			logrus.WithField("caller", CallerService(ctx)).Debug("Validate token failed (grpc)")
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		logrus.WithError(err).Error("Validate token failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	logrus.WithFields(logrus.Fields{
		"account_id": actor.Account.ID,
		"caller":     CallerService(ctx),
	}).Debug("Validate token succeeded (grpc)")
	return &types.ValidateTokenResponse{
		AccountId: actor.Account.ID,
		Email:     actor.Account.Email,
		Name:      actor.Account.Name,
		IsAdmin:   actor.Account.IsAdmin,
	}, nil
}

// GetAccount applies the anonymous visibility rule: unverified accounts are
// reported as not found.
func (s *AccountServer) GetAccount(ctx context.Context, req *types.GetAccountRequest) (*types.AccountResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Get account validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	account, err := s.accounts.GetAccount(ctx, nil, req.GetId())
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			logrus.WithField("account_id", req.GetId()).Debug("Get account failed: not found (grpc)")
			return nil, status.Error(codes.NotFound, "account not found")
		}
		logrus.WithError(err).WithField("account_id", req.GetId()).Error("Get account failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return types.NewAccountResponse(account), nil
}
