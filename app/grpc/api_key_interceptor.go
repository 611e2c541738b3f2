package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

type callerServiceKey struct{}
type callerAllowedAccessKey struct{}

// CallerService returns the name of the internal service that made the call.
func CallerService(ctx context.Context) string {
	caller, _ := ctx.Value(callerServiceKey{}).(string)
	return caller
}

func CallerAllowedAccess(ctx context.Context) []string {
	allowed, _ := ctx.Value(callerAllowedAccessKey{}).([]string)
	return allowed
}

// APIKeyUnaryInterceptor admits callers whose key is allowed to access this
// service. The health service stays public.
func APIKeyUnaryInterceptor(internal *service.InternalAuthService) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		caller, err := validateIncomingAPIKey(ctx, internal)
		if err != nil {
			return nil, err
		}

		ctx = context.WithValue(ctx, callerServiceKey{}, caller.ServiceName)
		ctx = context.WithValue(ctx, callerAllowedAccessKey{}, caller.AllowedAccess)
		return handler(ctx, req)
	}
}

func APIKeyStreamInterceptor(internal *service.InternalAuthService) gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, info *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(srv, ss)
		}
		caller, err := validateIncomingAPIKey(ss.Context(), internal)
		if err != nil {
			return err
		}

		ctx := context.WithValue(ss.Context(), callerServiceKey{}, caller.ServiceName)
		ctx = context.WithValue(ctx, callerAllowedAccessKey{}, caller.AllowedAccess)
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func validateIncomingAPIKey(ctx context.Context, internal *service.InternalAuthService) (*service.InternalCaller, error) {
	apiKey := incomingAPIKeyFromMetadata(ctx)
	if apiKey == "" {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	caller, err := internal.Authorize(ctx, apiKey)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInternalAPIKey) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		if errors.Is(err, service.ErrInternalAccessDenied) {
			return nil, status.Error(codes.PermissionDenied, "forbidden")
		}
		logrus.WithError(err).Error("Failed to validate internal api key (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return caller, nil
}

func incomingAPIKeyFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

type wrappedServerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
