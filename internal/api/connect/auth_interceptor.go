// Package connect provides the Connect RPC control service.
package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// ControlTokenHeader is the header name for the control token.
	ControlTokenHeader = "X-Control-Token"
)

// tokenInterceptor rejects requests whose control token does not match.
// It covers both unary calls and the notification stream.
type tokenInterceptor struct {
	token string
}

// NewControlAuthInterceptor creates an interceptor that validates the control
// token from request headers. An empty token disables the check.
func NewControlAuthInterceptor(token string) connect.Interceptor {
	return &tokenInterceptor{token: token}
}

func (i *tokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := i.check(req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *tokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *tokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *tokenInterceptor) check(header http.Header) error {
	if i.token == "" {
		return nil
	}
	token := header.Get(ControlTokenHeader)
	if token == "" {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	if token != i.token {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	return nil
}
