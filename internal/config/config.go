// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	ThemeDB   string `json:"theme_db"`
	DebugMode bool   `json:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// 图像生成相关配置
	ImageProvider string            `json:"image_provider"`
	ImageConfig   map[string]string `json:"image_config"`

	// 生成管线默认参数
	DefaultSlideCount int `json:"default_slide_count"`
	OutlineCandidates int `json:"outline_candidates"`
}

// Config 存储应用配置
type Config struct {
	Port      string
	APIKey    string
	DataDir   string
	LogDir    string
	DebugMode bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:      getEnv("PORT", "8080"),
		APIKey:    getEnv("OPENAI_API_KEY", ""),
		DataDir:   getEnvPath("DATA_DIR", "data"),
		LogDir:    getEnvPath("LOG_DIR", "logs"),
		DebugMode: getEnvBool("DEBUG_MODE", true),
	}

	if config.APIKey == "" {
		// 只记录警告，不返回错误
		log.Println("warning: OPENAI_API_KEY not set, generation endpoints will stay unavailable until configured")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:      baseConfig.Port,
		DataDir:   baseConfig.DataDir,
		LogDir:    baseConfig.LogDir,
		ThemeDB:   filepath.Join(baseConfig.DataDir, "themes.db"),
		DebugMode: baseConfig.DebugMode,

		LLMProvider: "openai",
		LLMConfig: map[string]string{
			"api_key":       baseConfig.APIKey,
			"default_model": "gpt-4o",
		},
		ImageProvider: "openai",
		ImageConfig: map[string]string{
			"api_key":       baseConfig.APIKey,
			"default_model": "dall-e-3",
		},

		DefaultSlideCount: 5,
		OutlineCandidates: 3,
	}

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置：保留文件中的提供商设置，基础配置以环境为准
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode
				if savedConfig.ThemeDB == "" {
					savedConfig.ThemeDB = filepath.Join(baseConfig.DataDir, "themes.db")
				}
				if savedConfig.DefaultSlideCount <= 0 {
					savedConfig.DefaultSlideCount = 5
				}
				if savedConfig.OutlineCandidates <= 0 {
					savedConfig.OutlineCandidates = 3
				}

				// 如果文件中没有API密钥，使用环境变量的密钥
				if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
					savedConfig.LLMConfig["api_key"] = baseConfig.APIKey
				}
				if savedConfig.ImageConfig != nil && savedConfig.ImageConfig["api_key"] == "" {
					savedConfig.ImageConfig["api_key"] = baseConfig.APIKey
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return &AppConfig{
			Port:      baseConfig.Port,
			DataDir:   baseConfig.DataDir,
			LogDir:    baseConfig.LogDir,
			ThemeDB:   filepath.Join(baseConfig.DataDir, "themes.db"),
			DebugMode: baseConfig.DebugMode,

			LLMProvider: "openai",
			LLMConfig: map[string]string{
				"api_key": baseConfig.APIKey,
			},
			ImageProvider: "openai",
			ImageConfig: map[string]string{
				"api_key": baseConfig.APIKey,
			},
			DefaultSlideCount: 5,
			OutlineCandidates: 3,
		}
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("configuration system not initialized")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return saveLocked()
}

// UpdateImageConfig 更新图像生成配置
func UpdateImageConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("configuration system not initialized")
	}

	currentConfig.ImageProvider = provider
	currentConfig.ImageConfig = config

	return saveLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

// saveLocked 持锁状态下序列化并写入配置文件
func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("no configuration to save")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
