// Command fleetcomply 运行车队合规服务及其维护任务
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fleetcomply/internal/config"
	"fleetcomply/internal/logging"
	"fleetcomply/internal/store"
)

var (
	configPath string
	devMode    bool
	verbose    bool
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:           "fleetcomply",
	Short:         "Multi-tenant fleet compliance service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: config.toml next to the executable)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "development mode")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides the config file)")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionRevokeCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置文件并应用全局参数
func loadConfig() (*config.AppConfig, config.LoadConfigInfo, error) {
	cfg, info, err := config.LoadConfigWithInfo(configPath)
	if err != nil {
		return nil, info, err
	}
	if devMode {
		cfg.Server.DevMode = true
	}
	if dataDir != "" {
		cfg.Data.DataDir = dataDir
	}
	return cfg, info, nil
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	return logging.New(cfg.Server.DevMode, verbose)
}

// openStore 打开配置数据目录中的数据库
func openStore(cfg *config.AppConfig) (*store.Store, error) {
	dir, _, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	return store.New(config.DBPath(dir))
}

// resolveTenant 按名称查找租户
func resolveTenant(cmd *cobra.Command, st *store.Store, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("--tenant is required")
	}
	t, err := st.GetTenantByName(cmd.Context(), name)
	if err != nil {
		return 0, fmt.Errorf("tenant %q: %w", name, err)
	}
	return t.ID, nil
}
