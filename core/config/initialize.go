package config

import (
	"log"
	"path/filepath"

	"github.com/spf13/afero"
)

// Initialize writes the installation skeleton under dir: the default
// config.yaml plus empty library and plugin directories. Existing files are
// left alone so re-running is safe.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	return InitializeFs(afero.NewOsFs(), dir, logger)
}

func InitializeFs(fs afero.Fs, dir string, logger *log.Logger) (*Configuration, error) {
	for _, sub := range []string{LibsDirName, PluginsDirName} {
		if err := fs.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, err
		}
	}

	configPath := filepath.Join(dir, ConfigurationName)
	exists, err := afero.Exists(fs, configPath)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Printf("%s already exists, keeping it", configPath)
	} else {
		if err := afero.WriteFile(fs, configPath, defaultConfigData, 0644); err != nil {
			return nil, err
		}
		logger.Printf("wrote %s", configPath)
	}

	return LoadFs(fs, dir)
}
