// Package logger wraps a process-wide zap logger.
package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

var (
	global *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init builds the global logger from cfg.
func Init(cfg Config) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level.SetLevel(lvl)
	zc.Level = level
	if cfg.Output != "" {
		zc.OutputPaths = []string{cfg.Output}
	}

	l, err := zc.Build(zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}
	global = l
	return nil
}

// Replace swaps the global logger, mostly for tests.
func Replace(l *zap.Logger) {
	global = l
}

// L returns the global logger, creating a production logger on first use.
func L() *zap.Logger {
	if global == nil {
		l, err := zap.NewProduction(zap.AddCallerSkip(1))
		if err != nil {
			l = zap.NewNop()
		}
		global = l
	}
	return global
}

// Sync flushes buffered entries.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// GinMiddleware logs one entry per request.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if user := c.GetString("username"); user != "" {
			fields = append(fields, zap.String("user", user))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			L().Error("request completed", fields...)
		case c.Writer.Status() >= 400:
			L().Warn("request completed", fields...)
		default:
			L().Info("request completed", fields...)
		}
	}
}
