package clog

import (
	"fmt"
	"strings"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config 日志配置结构，定义日志的基本行为
//
// 示例：
//
//	config := &clog.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "/var/log/promstore.log",
//	    AddSource: true,
//	}
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`                // debug|info|warn|error|fatal
	Format     string `json:"format" yaml:"format" mapstructure:"format"`             // json|console
	Output     string `json:"output" yaml:"output" mapstructure:"output"`             // stdout|stderr|<file path>
	AddSource  bool   `json:"addSource" yaml:"addSource" mapstructure:"add_source"`   // 是否显示调用位置
	SourceRoot string `json:"sourceRoot" yaml:"sourceRoot" mapstructure:"source_root"` // 用于裁剪文件路径
}

// validate 验证配置的有效性，并为空值设置默认值（内部使用）
func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	format := strings.ToLower(c.Format)
	if format != "json" && format != "console" {
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}
	// Output 字段可以是 stdout, stderr 或文件路径，不做严格校验
	return nil
}
