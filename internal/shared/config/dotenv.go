package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// mergeEnvFiles merges KEY=VALUE dotenv files into v in order, later files winning.
// Missing files are skipped; it is a local development convenience.
func mergeEnvFiles(v *viper.Viper, paths ...string) error {
	var errs []error
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
