package logger

import (
	"os"
	"path"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

/*
	日志模块，基于zap实现，日志文件使用lumberjack进行切割归档。
	对外暴露 Debug/Info/Warn/Error 等包级别方法，其他模块直接调用即可。
*/

// Settings 日志的配置项
type Settings struct {
	Path       string `yaml:"path"`        // 日志文件存放目录
	Name       string `yaml:"name"`        // 日志文件名
	Ext        string `yaml:"ext"`         // 日志文件后缀
	MaxSize    int    `yaml:"max-size"`    // 单个日志文件的最大体积(MB)，超过后切割
	MaxBackups int    `yaml:"max-backups"` // 保留的旧日志文件数量
}

var sugar *zap.SugaredLogger

func init() {
	// 默认只输出到标准输出，Setup之后才写入文件
	sugar = newLogger(zapcore.NewCore(defaultEncoder(), zapcore.AddSync(os.Stdout), zapcore.DebugLevel))
}

func defaultEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func newLogger(core zapcore.Core) *zap.SugaredLogger {
	// 跳过本包的包装函数，让日志定位到真正的调用处
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// Setup 初始化日志模块，同时输出到标准输出和日志文件
func Setup(settings *Settings) {
	fileWriter := &lumberjack.Logger{
		Filename:   path.Join(settings.Path, settings.Name+"."+settings.Ext),
		MaxSize:    settings.MaxSize,
		MaxBackups: settings.MaxBackups,
		LocalTime:  true,
	}
	core := zapcore.NewTee(
		zapcore.NewCore(defaultEncoder(), zapcore.AddSync(os.Stdout), zapcore.DebugLevel),
		zapcore.NewCore(defaultEncoder(), zapcore.AddSync(fileWriter), zapcore.InfoLevel),
	)
	sugar = newLogger(core)
}

func Debug(v ...interface{}) {
	sugar.Debug(v...)
}

func Info(v ...interface{}) {
	sugar.Info(v...)
}

func Warn(v ...interface{}) {
	sugar.Warn(v...)
}

func Error(v ...interface{}) {
	sugar.Error(v...)
}

// Fatal 输出日志后退出进程
func Fatal(v ...interface{}) {
	sugar.Fatal(v...)
}
