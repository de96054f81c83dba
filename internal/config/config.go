package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix 环境变量覆盖的前缀
const EnvPrefix = "FLEETCOMPLY_"

// AppConfig 服务配置
type AppConfig struct {
	Server     ServerConfig     `toml:"server"`
	Data       DataConfig       `toml:"data"`
	Storage    StorageConfig    `toml:"storage"`
	Compliance ComplianceConfig `toml:"compliance"`
	Import     ImportConfig     `toml:"import"`
	RateLimit  RateLimitConfig  `toml:"ratelimit"`
	Catalog    CatalogConfig    `toml:"catalog"`
}

// ServerConfig HTTP 监听配置
type ServerConfig struct {
	Port       int      `toml:"port" validate:"min=1,max=65535"`
	DevMode    bool     `toml:"dev_mode"`
	SessionTTL Duration `toml:"session_ttl"`
}

// DataConfig 数据库位置
type DataConfig struct {
	DataDir string `toml:"data_dir" validate:"required"`
}

// StorageConfig 上传文档配置
type StorageConfig struct {
	UploadDir     string `toml:"upload_dir"`                     // 默认为 <data_dir>/uploads
	PublicBaseURL string `toml:"public_base_url"`                // 文档 URL 前缀
	MaxUploadMB   int    `toml:"max_upload_mb" validate:"min=1"` // multipart 请求体上限
}

// ComplianceConfig 状态引擎与提醒扫描参数
type ComplianceConfig struct {
	AtRiskDays    int      `toml:"at_risk_days" validate:"min=1"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// ImportConfig 导入预览限制
type ImportConfig struct {
	DefaultPerPage int `toml:"default_per_page" validate:"min=1"`
	MaxPerPage     int `toml:"max_per_page" validate:"min=1,gtefield=DefaultPerPage"`
}

// RateLimitConfig 按租户限制上传接口
type RateLimitConfig struct {
	UploadsPerSecond float64 `toml:"uploads_per_second" validate:"min=0"`
	Burst            int     `toml:"burst" validate:"min=1"`
}

// CatalogConfig 可选的种子目录，替换内置目录
type CatalogConfig struct {
	SeedPath string `toml:"seed_path"`
}

// Duration 从 TOML 读取 "30m" 形式的字符串
type Duration struct {
	time.Duration
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfigInfo 记录配置文件中显式设置的项
type LoadConfigInfo struct {
	Path          string
	PortSpecified bool
}

// DefaultConfig 返回内置默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:       20261,
			SessionTTL: Duration{30 * 24 * time.Hour},
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Storage: StorageConfig{
			PublicBaseURL: "/api/v1/files",
			MaxUploadMB:   20,
		},
		Compliance: ComplianceConfig{
			AtRiskDays:    30,
			SweepInterval: Duration{time.Hour},
		},
		Import: ImportConfig{
			DefaultPerPage: 25,
			MaxPerPage:     200,
		},
		RateLimit: RateLimitConfig{
			UploadsPerSecond: 5,
			Burst:            10,
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}
	serverMap, ok := raw["server"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultPath 可执行文件旁的 config.toml
func DefaultPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, "config.toml")
}

// LoadConfigWithInfo 依次加载 path（为空时使用 DefaultPath）、.env 和
// FLEETCOMPLY_* 环境变量。文件不存在时保留默认值
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultPath()
	}
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, info, err
	}

	// .env 只填充尚未设置的变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, info, fmt.Errorf("load .env: %w", err)
	}
	portFromEnv, err := applyEnv(config)
	if err != nil {
		return nil, info, err
	}
	info.PortSpecified = info.PortSpecified || portFromEnv

	if err := config.Validate(); err != nil {
		return nil, info, err
	}
	return config, info, nil
}

// LoadConfig 从默认位置加载配置
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo("")
	return config, err
}

// SaveConfig 将配置以 TOML 写入 path
func SaveConfig(config *AppConfig, path string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var validate = validator.New()

// Validate 校验取值范围
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv 应用 FLEETCOMPLY_* 环境变量，并返回是否设置了端口
func applyEnv(c *AppConfig) (bool, error) {
	portSet := false
	ints := []struct {
		name string
		dst  *int
	}{
		{"PORT", &c.Server.Port},
		{"MAX_UPLOAD_MB", &c.Storage.MaxUploadMB},
		{"AT_RISK_DAYS", &c.Compliance.AtRiskDays},
		{"DEFAULT_PER_PAGE", &c.Import.DefaultPerPage},
		{"MAX_PER_PAGE", &c.Import.MaxPerPage},
		{"RATE_BURST", &c.RateLimit.Burst},
	}
	for _, e := range ints {
		v, ok := os.LookupEnv(EnvPrefix + e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return false, fmt.Errorf("%s%s: %w", EnvPrefix, e.name, err)
		}
		*e.dst = n
		if e.name == "PORT" {
			portSet = true
		}
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"DATA_DIR", &c.Data.DataDir},
		{"UPLOAD_DIR", &c.Storage.UploadDir},
		{"PUBLIC_BASE_URL", &c.Storage.PublicBaseURL},
		{"CATALOG", &c.Catalog.SeedPath},
	}
	for _, e := range strs {
		if v := os.Getenv(EnvPrefix + e.name); v != "" {
			*e.dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "DEV_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%sDEV_MODE: %w", EnvPrefix, err)
		}
		c.Server.DevMode = b
	}
	if v := os.Getenv(EnvPrefix + "SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return false, fmt.Errorf("%sSWEEP_INTERVAL: %w", EnvPrefix, err)
		}
		c.Compliance.SweepInterval = Duration{d}
	}
	if v := os.Getenv(EnvPrefix + "UPLOADS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, fmt.Errorf("%sUPLOADS_PER_SECOND: %w", EnvPrefix, err)
		}
		c.RateLimit.UploadsPerSecond = f
	}
	return portSet, nil
}

// ResolveDir 将配置目录解析为相对可执行文件的绝对路径，与 data_dir 一致
func ResolveDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, dir)
}

// EnsureDataDir 创建数据目录和上传目录并返回两者
func EnsureDataDir(config *AppConfig) (dataDir, uploadDir string, err error) {
	dataDir = ResolveDir(config.Data.DataDir)
	uploadDir = config.Storage.UploadDir
	if uploadDir == "" {
		uploadDir = filepath.Join(dataDir, "uploads")
	} else {
		uploadDir = ResolveDir(uploadDir)
	}
	for _, dir := range []string{dataDir, uploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", "", err
		}
	}
	return dataDir, uploadDir, nil
}

// DBPath dataDir 中的 SQLite 文件
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "fleetcomply.db")
}
