package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/hackeros/hl/core/config"
	"github.com/hackeros/hl/core/emit"
	"github.com/hackeros/hl/core/lang"
	"github.com/hackeros/hl/core/logger"
)

var cfgPath string

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".hackeros", "hacker-lang")
}

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}
	if err != nil {
		return nil, err
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return configuration, nil
}

func newParser(cfg *config.Configuration, verbose bool) *lang.Parser {
	return lang.NewParser(
		lang.WithFs(cfg.Fs()),
		lang.WithLibraryRoot(cfg.LibraryRoot()),
		lang.WithPluginRoot(cfg.PluginRoot()),
		lang.WithRuntime(cfg.RuntimeBinary),
		lang.Verbose(verbose),
	)
}

func newMaterializer(cfg *config.Configuration) *emit.Materializer {
	return emit.New(
		emit.WithFs(cfg.Fs()),
		emit.WithLibraryRoot(cfg.LibraryRoot()),
		emit.WithInstallCommand(cfg.InstallCommand),
	)
}

// appLogger returns the JSON-lines event logger backed by the app log. The
// log file stays open for the remainder of the process.
func appLogger(cfg *config.Configuration) *logger.Logger {
	w, err := cfg.OpenAppLog()
	if err != nil {
		return logger.NewJSONLinesRecorder(io.Discard)
	}
	return logger.NewJSONLinesRecorder(w)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Hacker-lang scripting interface",
	Long:  `Translates hacker-lang scripts to shell and executes them.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigDir(), "config directory")
}
