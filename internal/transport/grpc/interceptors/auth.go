package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/usecase"
)

const (
	apiKeyMetadataKey = "x-api-key"
	authorizationKey  = "authorization"
	bearerPrefix      = "bearer "
)

// APIKeyAuthorizer verifies API key secrets presented in call metadata.
type APIKeyAuthorizer interface {
	Authorize(ctx context.Context, operation, secret string, required domain.Permissions) (usecase.AccessScope, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	AllowMethods []string
	Required     domain.Permissions
	Logger       *zap.Logger
}

// AuthInterceptor validates incoming calls using API keys.
type AuthInterceptor struct {
	authorizer APIKeyAuthorizer
	required   domain.Permissions
	logger     *zap.Logger
	allow      map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(authorizer APIKeyAuthorizer, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{authorizer: authorizer, required: opts.Required, logger: logger, allow: allow}
}

// UnaryServerInterceptor returns a gRPC unary interceptor that enforces API key authentication.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := ai.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor that enforces API key authentication.
func (ai *AuthInterceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := ai.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &scopedStream{ServerStream: ss, ctx: ctx})
	}
}

func (ai *AuthInterceptor) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	if ai == nil || ai.authorizer == nil {
		return ctx, nil
	}
	if _, ok := ai.allow[fullMethod]; ok {
		return ctx, nil
	}

	secret, err := apiKeyFromMetadata(ctx)
	if err != nil {
		ai.logger.Warn("gRPC authentication failed", zap.String("method", fullMethod), zap.Error(err))
		return ctx, status.Error(codes.Unauthenticated, err.Error())
	}

	scope, err := ai.authorizer.Authorize(ctx, fullMethod, secret, ai.required)
	if err != nil {
		ai.logger.Warn("gRPC api key rejected", zap.String("method", fullMethod), zap.Error(err))
		if errors.Is(err, usecase.ErrUnauthorized) {
			return ctx, status.Error(codes.Unauthenticated, usecase.MessageOf(err))
		}
		return ctx, status.Error(codes.Unavailable, usecase.MessageOf(err))
	}

	return WithScope(ctx, scope), nil
}

type scopedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *scopedStream) Context() context.Context {
	return s.ctx
}

// scopeContextKey stores the verified access scope within the request context.
type scopeContextKey struct{}

// WithScope returns a derived context containing the access scope.
func WithScope(ctx context.Context, scope usecase.AccessScope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the access scope from context when available.
func ScopeFromContext(ctx context.Context) (usecase.AccessScope, bool) {
	if ctx == nil {
		return usecase.AccessScope{}, false
	}
	scope, ok := ctx.Value(scopeContextKey{}).(usecase.AccessScope)
	return scope, ok
}

func apiKeyFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}

	if values := md.Get(apiKeyMetadataKey); len(values) > 0 && strings.TrimSpace(values[0]) != "" {
		return strings.TrimSpace(values[0]), nil
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("api key required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		value = strings.TrimSpace(value[len(bearerPrefix):])
	}
	if value == "" {
		return "", errors.New("api key required")
	}
	return value, nil
}
