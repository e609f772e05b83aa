package log

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const callerSkipFrames = 1

// Environment controls the baseline logger profile.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
	EnvironmentLocal       Environment = "local"
)

// Config contains the logger initialization inputs.
type Config struct {
	Environment     Environment
	Level           string
	OTelLibraryName string
}

func (c Config) validate() error {
	if c.OTelLibraryName == "" {
		return fmt.Errorf("OTelLibraryName is required")
	}

	switch c.Environment {
	case EnvironmentProduction, EnvironmentStaging, EnvironmentDevelopment, EnvironmentLocal:
		return nil
	default:
		return fmt.Errorf("invalid environment %q", c.Environment)
	}
}

// ZapLogger is the zap implementation of Logger. Log records are teed
// into the OpenTelemetry log bridge.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap creates a structured logger and returns it with a
// runtime-adjustable level handle.
func NewZap(cfg Config) (*ZapLogger, zap.AtomicLevel, error) {
	if err := cfg.validate(); err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid zap config: %w", err)
	}

	baseConfig := buildConfigByEnvironment(cfg.Environment)

	level, err := resolveLevel(cfg)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	baseConfig.Level = level
	baseConfig.DisableStacktrace = true

	coreOptions := []zap.Option{
		zap.AddCallerSkip(callerSkipFrames),
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelzap.NewCore(cfg.OTelLibraryName))
		}),
	}

	built, err := baseConfig.Build(coreOptions...)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to build logger: %w", err)
	}

	return &ZapLogger{sugar: built.Sugar()}, level, nil
}

func resolveLevel(cfg Config) (zap.AtomicLevel, error) {
	if strings.TrimSpace(cfg.Level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(cfg.Level); err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("invalid level %q: %w", cfg.Level, err)
		}

		return zap.NewAtomicLevelAt(parsed), nil
	}

	if cfg.Environment == EnvironmentDevelopment || cfg.Environment == EnvironmentLocal {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	}

	return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
}

func buildConfigByEnvironment(environment Environment) zap.Config {
	if environment == EnvironmentDevelopment || environment == EnvironmentLocal {
		cfg := zap.NewDevelopmentConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		return cfg
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return cfg
}

func (l *ZapLogger) Info(args ...any)  { l.sugar.Info(sanitizeArgs(args)...) }
func (l *ZapLogger) Warn(args ...any)  { l.sugar.Warn(sanitizeArgs(args)...) }
func (l *ZapLogger) Error(args ...any) { l.sugar.Error(sanitizeArgs(args)...) }
func (l *ZapLogger) Debug(args ...any) { l.sugar.Debug(sanitizeArgs(args)...) }

func (l *ZapLogger) Infof(format string, args ...any) {
	l.sugar.Infof(sanitizeString(format), args...)
}

func (l *ZapLogger) Warnf(format string, args ...any) {
	l.sugar.Warnf(sanitizeString(format), args...)
}

func (l *ZapLogger) Errorf(format string, args ...any) {
	l.sugar.Errorf(sanitizeString(format), args...)
}

func (l *ZapLogger) Debugf(format string, args ...any) {
	l.sugar.Debugf(sanitizeString(format), args...)
}

// WithFields implements Logger.
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(sanitizeArgs(fields)...)}
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
