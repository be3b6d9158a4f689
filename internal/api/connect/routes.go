package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ControlServiceName is the fully-qualified name of the control service.
	ControlServiceName = "melody.v1.ControlService"

	// ControlServiceExecuteProcedure runs one shell command line.
	ControlServiceExecuteProcedure = "/melody.v1.ControlService/Execute"
	// ControlServiceGetStatusProcedure returns the player status.
	ControlServiceGetStatusProcedure = "/melody.v1.ControlService/GetStatus"
	// ControlServiceSubscribeProcedure streams player notifications.
	ControlServiceSubscribeProcedure = "/melody.v1.ControlService/Subscribe"
)

// NewControlServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewControlServiceHandler(svc *ControlService, opts ...connect.HandlerOption) (string, http.Handler) {
	executeHandler := connect.NewUnaryHandler(
		ControlServiceExecuteProcedure,
		svc.Execute,
		opts...,
	)
	getStatusHandler := connect.NewUnaryHandler(
		ControlServiceGetStatusProcedure,
		svc.GetStatus,
		opts...,
	)
	subscribeHandler := connect.NewServerStreamHandler(
		ControlServiceSubscribeProcedure,
		svc.Subscribe,
		opts...,
	)
	return "/" + ControlServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ControlServiceExecuteProcedure:
			executeHandler.ServeHTTP(w, r)
		case ControlServiceGetStatusProcedure:
			getStatusHandler.ServeHTTP(w, r)
		case ControlServiceSubscribeProcedure:
			subscribeHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ControlClient is a client for the control service.
type ControlClient struct {
	token     string
	execute   *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	getStatus *connect.Client[emptypb.Empty, structpb.Struct]
	subscribe *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewControlClient creates a client for the control service at baseURL
// (for example http://localhost:7419).
func NewControlClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *ControlClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &ControlClient{
		token: token,
		execute: connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](
			httpClient,
			baseURL+ControlServiceExecuteProcedure,
			opts...,
		),
		getStatus: connect.NewClient[emptypb.Empty, structpb.Struct](
			httpClient,
			baseURL+ControlServiceGetStatusProcedure,
			opts...,
		),
		subscribe: connect.NewClient[emptypb.Empty, structpb.Struct](
			httpClient,
			baseURL+ControlServiceSubscribeProcedure,
			opts...,
		),
	}
}

// Execute runs a command line on the player and returns its output.
func (c *ControlClient) Execute(ctx context.Context, line string) (string, error) {
	req := connect.NewRequest(wrapperspb.String(line))
	c.authorize(req.Header())
	resp, err := c.execute.CallUnary(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Msg.GetValue(), nil
}

// GetStatus returns the player status.
func (c *ControlClient) GetStatus(ctx context.Context) (*structpb.Struct, error) {
	req := connect.NewRequest(&emptypb.Empty{})
	c.authorize(req.Header())
	resp, err := c.getStatus.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Subscribe opens the notification stream. The first message carries the
// current state.
func (c *ControlClient) Subscribe(ctx context.Context) (*connect.ServerStreamForClient[structpb.Struct], error) {
	req := connect.NewRequest(&emptypb.Empty{})
	c.authorize(req.Header())
	return c.subscribe.CallServerStream(ctx, req)
}

func (c *ControlClient) authorize(h http.Header) {
	if c.token != "" {
		h.Set(ControlTokenHeader, c.token)
	}
}
