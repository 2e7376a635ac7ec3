package gwlog

import "go.uber.org/zap/zapcore"

type Options struct {
	Level    zapcore.Level
	LogDir   string
	LineNum  bool // 输出调用位置
	NoStdout bool
	NoFile   bool // 仅输出到stdout，测试时使用
}

func NewOptions() *Options {
	return &Options{
		Level:  zapcore.InfoLevel,
		LogDir: "logs",
	}
}
