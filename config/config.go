package config

import (
	"os"
	"strconv"
	"strings"
)

// 存储驱动
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Config 应用配置
type Config struct {
	Port        int
	StoreDriver string
	MongoURI    string
	MongoDB     string
	SQLitePath  string
	JWTKey      string
	Debug       bool
	CORSOrigins []string

	KafkaBrokers         []string
	KafkaAlertTopic      string
	KafkaResolutionTopic string
	KafkaGroupID         string

	// BacklogReportHour 每日积压检查的整点，负数表示关闭
	BacklogReportHour int
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port <= 0 {
		port = 8080
	}
	reportHour, err := strconv.Atoi(getEnv("BACKLOG_REPORT_HOUR", "8"))
	if err != nil || reportHour > 23 {
		reportHour = 8
	}

	return &Config{
		Port:        port,
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoURI:    getEnv("MONGO_URI", "mongodb://127.0.0.1:27017/?replicaSet=rs0"),
		MongoDB:     getEnv("MONGO_DB", "leadops"),
		SQLitePath:  getEnv("SQLITE_PATH", "leadops.db"),
		JWTKey:      getEnv("JWT_KEY", "your-secret-key"), // 实际环境应替换为安全密钥
		Debug:       getEnv("GIN_MODE", "debug") == "debug",
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "")),

		KafkaBrokers:         splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaAlertTopic:      getEnv("KAFKA_ALERT_TOPIC", "duplicate-alerts"),
		KafkaResolutionTopic: getEnv("KAFKA_RESOLUTION_TOPIC", "duplicate-resolutions"),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "leadops"),

		BacklogReportHour: reportHour,
	}
}

// KafkaEnabled 是否配置了 Kafka
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// splitList 解析逗号分隔的列表，忽略空项
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
