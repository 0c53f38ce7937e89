package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/wolfman30/persona-platform/cmd/mainconfig"
	"github.com/wolfman30/persona-platform/internal/api/router"
	"github.com/wolfman30/persona-platform/internal/app/bootstrap"
	"github.com/wolfman30/persona-platform/internal/archetype"
	appconfig "github.com/wolfman30/persona-platform/internal/config"
	"github.com/wolfman30/persona-platform/internal/persona"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

// The Lambda serves the public persona routes in-process. Tenant records come
// from DynamoDB when TENANT_DYNAMO_TABLE is set, otherwise from the demo set.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	h, err := buildHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("persona lambda init failed", "error", err)
		panic(err)
	}
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, h, evt)
	})
}

func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, error) {
	var backends bootstrap.TenantBackends
	var catalogSource archetype.ObjectGetter
	if cfg.UsesAWS() {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backends.Dynamo = dynamodb.NewFromConfig(awsCfg)
		catalogSource = mainconfig.S3Client(awsCfg, cfg)
	}
	catalog, err := bootstrap.BuildCatalog(ctx, cfg, catalogSource, logger)
	if err != nil {
		return nil, err
	}
	dir, err := bootstrap.BuildTenantDirectory(cfg, backends, logger)
	if err != nil {
		return nil, err
	}
	svc, err := bootstrap.BuildPersonaService(cfg, bootstrap.PersonaDeps{Catalog: catalog, Directory: dir}, logger)
	if err != nil {
		return nil, err
	}
	return router.New(&router.Config{
		Logger:             logger,
		PersonaHandler:     persona.NewHandler(svc, logger),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}), nil
}

func handle(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if path == "/_health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"invalid body"}`}, nil
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"invalid request"}`}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.RemoteAddr = ip
	}
	if host := strings.TrimSpace(evt.RequestContext.DomainName); host != "" {
		req.Host = host
	}

	rw := newBufferedResponse()
	h.ServeHTTP(rw, req)
	return rw.event(), nil
}

// bufferedResponse collects a handler's output for the API Gateway reply.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: http.Header{}}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) event() events.APIGatewayV2HTTPResponse {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(map[string]string, len(b.header))
	for k, v := range b.header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       b.body.String(),
	}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}
