package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"
	LibsDirName       = "libs"
	PluginsDirName    = "plugins"
	AppLogName        = "app.log"
)

// Configuration describes one hacker-lang installation directory: where
// libraries and plugins live, which shell runs generated scripts, and how
// long a run may take.
type Configuration struct {
	configDir string
	configFs  afero.Fs

	// Shell is the command line of the interpreter for generated scripts.
	Shell string `json:"shell" validate:"required"`

	// RuntimeBinary executes DSL-source plugins.
	RuntimeBinary string `json:"runtime_binary" validate:"required"`

	// InstallCommand prefixes the install half of dependency guards.
	InstallCommand string `json:"install_command" validate:"required"`

	// TimeoutSeconds bounds one script execution.
	TimeoutSeconds int `json:"timeout_seconds" validate:"gt=0"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// Fs returns the filesystem the configuration directory lives on.
func (c *Configuration) Fs() afero.Fs { return c.fs() }

// LibraryRoot is the directory searched for #library references.
func (c *Configuration) LibraryRoot() string {
	return filepath.Join(c.configDir, LibsDirName)
}

// PluginRoot is the directory searched for \plugin references.
func (c *Configuration) PluginRoot() string {
	return filepath.Join(c.configDir, PluginsDirName)
}

func (c *Configuration) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OpenAppLog opens the application event log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	toOpen := filepath.Join(c.configDir, AppLogName)
	return c.fs().OpenFile(toOpen, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
