// Package fceval holds application-wide defaults shared by the config, db and CLI packages.
package fceval

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName      = "fceval"
	DefaultEnvPrefix    = "FCEVAL"
	DefaultDatabaseType = "libsql"
	DefaultDatabaseName = "results.db"
)

var (
	DefaultConfigPath  = filepath.Join(userConfigDir(), DefaultAppName)
	DefaultCacheDir    = filepath.Join(userCacheDir(), DefaultAppName)
	DefaultDatabaseDir = filepath.Join(DefaultCacheDir, "db")
	DefaultDatabaseDSN = "file:" + filepath.Join(DefaultDatabaseDir, DefaultDatabaseName)
)

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
