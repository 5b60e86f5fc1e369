package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Setup 配置全局 logrus 输出，level 无法解析时回退到 info
func Setup(level string, out io.Writer) {
	if out != nil {
		logrus.SetOutput(out)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("未知日志级别，使用 info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
