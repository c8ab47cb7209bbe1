package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"redisGo/lib/logger"
	"redisGo/lib/utils"
)

var (
	ClusterMode    = "cluster"
	StandaloneMode = "standalone"
)

// ServerProperties 定义了服务器全局的配置
type ServerProperties struct {
	RunID          string `yaml:"-"`               // 每次启动时生成的唯一ID
	Bind           string `yaml:"bind"`            // 绑定的IP地址
	Port           int    `yaml:"port"`            // 绑定的端口号
	Databases      int    `yaml:"databases"`       // 数据库数量
	MaxClients     int    `yaml:"max-clients"`     // 能够处理的最大客户端连接数
	AppendOnly     bool   `yaml:"append-only"`     // 是否开启AOF持久化
	AppendFilename string `yaml:"append-filename"` // AOF文件名
	AppendFsync    string `yaml:"append-fsync"`    // AOF落盘策略(always/everysec/no)

	// 主从复制相关配置
	ReplicaOf       string `yaml:"replica-of"`       // 上游主服务器地址("host:port")，非空表示以从服务器身份启动
	ReplBacklogSize int    `yaml:"repl-backlog-size"` // 复制积压缓冲区的字节上限
	ReplTimeout     int    `yaml:"repl-timeout"`      // 复制超时时间(秒)

	UseGnet bool `yaml:"use-gnet"` // 使用gnet事件循环接入层替代每连接一协程的tcp接入层

	Logger logger.Settings `yaml:"logger"` // 日志配置
}

// ServerInfo 记录本次启动的运行信息
type ServerInfo struct {
	StartUpTime time.Time
}

// Properties 进程内唯一的配置实例
var Properties *ServerProperties

// EachTimeServerInfo 本次启动的运行信息
var EachTimeServerInfo *ServerInfo

func init() {
	EachTimeServerInfo = &ServerInfo{
		StartUpTime: time.Now(),
	}

	Properties = defaultProperties()
}

func defaultProperties() *ServerProperties {
	return &ServerProperties{
		Bind:            "127.0.0.1",
		Port:            6379,
		Databases:       16,
		AppendOnly:      false,
		AppendFilename:  "appendonly.aof",
		AppendFsync:     "everysec",
		ReplBacklogSize: 1 << 20, // 1MB
		ReplTimeout:     60,
		RunID:           utils.RandHexString(40),
	}
}

// SetupConfig 从yaml配置文件加载配置，文件中未出现的项保持默认值
func SetupConfig(configFilename string) {
	props := defaultProperties()
	data, err := os.ReadFile(configFilename)
	if err != nil {
		logger.Warn("read config file failed: " + err.Error() + ", using default config")
		Properties = props
		return
	}
	if err = yaml.Unmarshal(data, props); err != nil {
		logger.Fatal("parse config file failed: " + err.Error())
	}
	if props.Databases <= 0 {
		props.Databases = 16
	}
	if props.ReplBacklogSize <= 0 {
		props.ReplBacklogSize = 1 << 20
	}
	props.RunID = utils.RandHexString(40)
	Properties = props
}
