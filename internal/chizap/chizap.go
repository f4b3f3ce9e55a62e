// Package chizap logs chi requests through zap.
package chizap

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fn extracts extra fields from the request context after the handler ran.
type Fn func(ctx context.Context) []zapcore.Field

type Config struct {
	TimeFormat      string
	UTC             bool
	SkipPaths       []string
	SkipPathRegexps []*regexp.Regexp
	Context         Fn
	DefaultLevel    zapcore.Level
}

func Chizap(logger *zap.Logger, timeFormat string, utc bool) func(next http.Handler) http.Handler {
	return ChizapWithConfig(logger, &Config{TimeFormat: timeFormat, UTC: utc, DefaultLevel: zapcore.InfoLevel})
}

func ChizapWithConfig(logger *zap.Logger, conf *Config) func(next http.Handler) http.Handler {
	skipPaths := make(map[string]struct{}, len(conf.SkipPaths))
	for _, path := range conf.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	skip := func(path string) bool {
		if _, ok := skipPaths[path]; ok {
			return true
		}
		for _, reg := range conf.SkipPathRegexps {
			if reg.MatchString(path) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// handlers may replace the request context, so fields are read
			// from the request the router finally served
			served := r
			next.ServeHTTP(ww, requestCapture(r, &served))

			if skip(path) {
				return
			}

			end := time.Now()
			if conf.UTC {
				end = end.UTC()
			}

			fields := []zapcore.Field{
				zap.Int("status", ww.Status()),
				zap.String("method", r.Method),
				zap.String("path", path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", r.RemoteAddr),
				zap.String("user-agent", r.UserAgent()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", end.Sub(start)),
			}
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, zap.String("request-id", reqID))
			}
			if conf.TimeFormat != "" {
				fields = append(fields, zap.String("time", end.Format(conf.TimeFormat)))
			}
			if conf.Context != nil {
				fields = append(fields, conf.Context(served.Context())...)
			}

			switch {
			case ww.Status() >= http.StatusInternalServerError:
				logger.Error(path, fields...)
			case ww.Status() >= http.StatusBadRequest:
				logger.Warn(path, fields...)
			default:
				logger.Log(conf.DefaultLevel, path, fields...)
			}
		})
	}
}

type captureKey struct{}

// Capture lets inner middleware publish the request it forwarded so the
// access log sees values added to the context further down the chain.
func Capture(r *http.Request) {
	if p, ok := r.Context().Value(captureKey{}).(**http.Request); ok {
		*p = r
	}
}

func requestCapture(r *http.Request, served **http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), captureKey{}, served))
}
