package app

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/diegomarin28/KERANA-sub001/internal/config"
)

func NewLogger(cfg config.LogConfig, env string) *zap.Logger {
	var zc zap.Config

	if env == config.EnvProduction {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.OutputPaths = []string{"stdout"}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			panic("invalid LOG_LEVEL: " + err.Error())
		}
		zc.Level = level
	}

	logger, err := zc.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	if cfg.File == "" {
		return logger
	}

	// Дополнительно пишем JSON в файл с ротацией
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 7,
			MaxAge:     28, // days
			Compress:   true,
		}),
		zc.Level,
	)

	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
}
