// Package config loads pnpm-catalog settings and resolves the workspace
// every command operates on.
//
// # Configuration File
//
// config.yaml is searched in the workspace root, then in
// $XDG_CONFIG_HOME/pnpm-catalog. Every key can also be set through the
// environment with the PNPM_CATALOG_ prefix:
//
//	backup_dir: .backups        # PNPM_CATALOG_BACKUP_DIR
//	default_catalog: react18    # PNPM_CATALOG_DEFAULT_CATALOG
//	assume_yes: false           # PNPM_CATALOG_ASSUME_YES
//
// # Loading Configuration
//
// Callers own the viper instance so flags can be bound before loading:
//
//	v := viper.New()
//	config.Init(v, root)
//	_ = v.BindPFlag(config.KeyBackupDir, cmd.Flags().Lookup("backup-dir"))
//	cfg, err := config.Load(v, configPath)
//	ws := config.Resolve(root, cfg)
//
// A relative backup_dir is resolved against the workspace root. When unset
// the store lives in node_modules/.cache/pnpm-catalog/backups.
package config
