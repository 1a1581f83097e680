package environments

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/temirov/modsync/internal/modules/deploy"
	pathutils "github.com/temirov/modsync/internal/utils/path"
)

const (
	applicationCacheDirectoryNameConstant = "modsync"
	defaultModuleDirectoryConstant        = "/etc/puppetlabs/code/environments"
	defaultPrefixDirectoryConstant        = "modules"
	defaultDeclarationFileNameConstant    = "modules.yaml"

	autocleanConfigurationKeyConstant       = "autoclean"
	moduleDirectoryConfigurationKeyConstant = "module_dir"
	prefixDirectoryConfigurationKeyConstant = "prefix_dir"
	cacheDirectoryConfigurationKeyConstant  = "tmp_dir"
	mirrorCommandConfigurationKeyConstant   = "rsync"
	verboseConfigurationKeyConstant         = "verbose"
	testModeConfigurationKeyConstant        = "test"
	quietConfigurationKeyConstant           = "quiet"
	declarationFileConfigurationKeyConstant = "declaration_file"
	environmentConfigurationKeyConstant     = "environment"
)

// Configuration captures the settings shared by every environment action.
type Configuration struct {
	Autoclean           bool   `mapstructure:"autoclean"`
	ModuleDirectory     string `mapstructure:"module_dir"`
	PrefixDirectory     string `mapstructure:"prefix_dir"`
	CacheDirectory      string `mapstructure:"tmp_dir"`
	MirrorCommand       string `mapstructure:"rsync"`
	Verbose             bool   `mapstructure:"verbose"`
	TestMode            bool   `mapstructure:"test"`
	Quiet               bool   `mapstructure:"quiet"`
	DeclarationFileName string `mapstructure:"declaration_file"`
	EnvironmentFilter   string `mapstructure:"environment"`
}

// DefaultConfiguration returns the baseline configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		Autoclean:           true,
		ModuleDirectory:     defaultModuleDirectoryConstant,
		PrefixDirectory:     defaultPrefixDirectoryConstant,
		CacheDirectory:      "",
		MirrorCommand:       deploy.DefaultMirrorCommandConstant,
		DeclarationFileName: defaultDeclarationFileNameConstant,
	}
}

// DefaultConfigurationValues exposes DefaultConfiguration as viper defaults.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		autocleanConfigurationKeyConstant:       defaults.Autoclean,
		moduleDirectoryConfigurationKeyConstant: defaults.ModuleDirectory,
		prefixDirectoryConfigurationKeyConstant: defaults.PrefixDirectory,
		cacheDirectoryConfigurationKeyConstant:  defaults.CacheDirectory,
		mirrorCommandConfigurationKeyConstant:   defaults.MirrorCommand,
		verboseConfigurationKeyConstant:         defaults.Verbose,
		testModeConfigurationKeyConstant:        defaults.TestMode,
		quietConfigurationKeyConstant:           defaults.Quiet,
		declarationFileConfigurationKeyConstant: defaults.DeclarationFileName,
		environmentConfigurationKeyConstant:     defaults.EnvironmentFilter,
	}
}

// Sanitize trims values, expands "~" in directories and fills the cache directory and
// declaration file name when they are empty.
func (configuration Configuration) Sanitize(expander *pathutils.HomeExpander) Configuration {
	sanitized := configuration

	sanitized.ModuleDirectory = expander.Expand(configuration.ModuleDirectory)
	sanitized.CacheDirectory = expander.Expand(configuration.CacheDirectory)
	if len(sanitized.CacheDirectory) == 0 {
		sanitized.CacheDirectory = filepath.Join(xdg.CacheHome, applicationCacheDirectoryNameConstant)
	}
	sanitized.PrefixDirectory = strings.Trim(strings.TrimSpace(configuration.PrefixDirectory), string(filepath.Separator))
	sanitized.MirrorCommand = strings.TrimSpace(configuration.MirrorCommand)
	sanitized.DeclarationFileName = strings.TrimSpace(configuration.DeclarationFileName)
	if len(sanitized.DeclarationFileName) == 0 {
		sanitized.DeclarationFileName = defaultDeclarationFileNameConstant
	}
	sanitized.EnvironmentFilter = strings.TrimSpace(configuration.EnvironmentFilter)

	return sanitized
}
