package middleware

import (
	"context"
	"os"
	"time"

	"locator/message"

	"github.com/rs/zerolog"
)

var accessLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Str("component", "server").Logger()

func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			start := time.Now()
			rpcMessage := next(ctx, req)
			evt := accessLog.Info().Str("method", req.ServiceMethod).Dur("duration", time.Since(start))
			if rpcMessage.Error != "" {
				evt.Str("err", rpcMessage.Error)
			}
			evt.Msg("request handled")
			return rpcMessage
		}
	}
}
