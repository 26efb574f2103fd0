// Command lambda serves the stateless optimizer behind an AWS Lambda
// Function URL.  It shares request decoding with POST /v1/optimize and
// persists nothing.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/config"
	"github.com/iliyamo/event-seating-planner/internal/handler"
	"github.com/iliyamo/event-seating-planner/internal/logging"
	"github.com/iliyamo/event-seating-planner/internal/metrics"
	"github.com/iliyamo/event-seating-planner/internal/service"
)

func main() {
	log, _ := logging.New(false, os.Getenv("LOG_LEVEL"))
	log = logging.OrNop(log)
	defer func() { _ = log.Sync() }()

	opt := service.NewOptimizer(nil, nil, nil, config.LoadOptimizerConfig().Budget(), metrics.NewRecorder(nil), log.Named("optimizer"))
	lambda.Start(newHandler(opt, log))
}

func newHandler(opt *service.Optimizer, log *zap.Logger) func(context.Context, events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	return func(_ context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		if req.RequestContext.HTTP.Method != "" && req.RequestContext.HTTP.Method != http.MethodPost {
			return reply(http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"}), nil
		}
		body := []byte(req.Body)
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return reply(http.StatusBadRequest, map[string]string{"error": "invalid base64 body"}), nil
			}
			body = decoded
		}
		if len(body) > handler.MaxOptimizeBody {
			return reply(http.StatusRequestEntityTooLarge, map[string]string{"error": "snapshot too large"}), nil
		}
		snap, budget, err := handler.DecodeOptimizeRequest(body)
		if err != nil {
			return reply(http.StatusBadRequest, map[string]string{"error": err.Error()}), nil
		}
		res := opt.Stateless(snap, budget)
		log.Info("optimized",
			zap.String("request_id", req.RequestContext.RequestID),
			zap.Int("guests", len(snap.Guests)),
			zap.Int("moved", len(res.MovedGuestIDs)))
		return reply(http.StatusOK, res), nil
	}
}

func reply(status int, v any) events.LambdaFunctionURLResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status, body = http.StatusInternalServerError, []byte(`{"error":"encode response failed"}`)
	}
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
