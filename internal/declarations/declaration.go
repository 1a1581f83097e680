package declarations

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	forgeSeparatorConstant                  = "/"
	gitRepositorySuffixConstant             = ".git"
	declarationParseErrorTemplateConstant   = "failed to parse declaration file: %w"
	invalidModuleNameErrorTemplateConstant  = "invalid module name %q: module names may only contain letters, digits and underscores"
	sourceUndeterminedErrorTemplateConstant = "module %q declares no git source and the declaration file has no FORGE"
	moduleNameMissingMessageConstant        = "module entry without a mod name"
)

var moduleNamePattern = regexp.MustCompile(`^\w+$`)

// ErrModuleNameMissing indicates a MODULES entry without a mod key.
var ErrModuleNameMissing = errors.New(moduleNameMissingMessageConstant)

// ModuleDeclaration describes one declared module.
type ModuleDeclaration struct {
	Name      string
	SourceURL string
	// Reference is the tag, branch or commit the module is pinned to; empty means unpinned.
	Reference string
}

// InvalidModuleNameError reports a module name that could escape the module directories.
type InvalidModuleNameError struct {
	Name string
}

// Error describes the invalid name.
func (invalidName *InvalidModuleNameError) Error() string {
	return fmt.Sprintf(invalidModuleNameErrorTemplateConstant, invalidName.Name)
}

// SourceUndeterminedError reports a module whose source URL cannot be derived.
type SourceUndeterminedError struct {
	Name string
}

// Error describes the missing source.
func (undetermined *SourceUndeterminedError) Error() string {
	return fmt.Sprintf(sourceUndeterminedErrorTemplateConstant, undetermined.Name)
}

type declarationDocument struct {
	Forge   string        `yaml:"FORGE"`
	Modules []moduleEntry `yaml:"MODULES"`
}

type moduleEntry struct {
	Name      string `yaml:"mod"`
	SourceURL string `yaml:"git"`
	Reference string `yaml:"ref"`
}

// ValidateModuleName returns an *InvalidModuleNameError unless name consists only of word characters.
func ValidateModuleName(name string) error {
	if !moduleNamePattern.MatchString(name) {
		return &InvalidModuleNameError{Name: name}
	}
	return nil
}

// Parse decodes declaration file content into module declarations in file order.
// Duplicate names are preserved. Names are kept verbatim and not validated here; see ValidateModuleName.
func Parse(content []byte) ([]ModuleDeclaration, error) {
	var document declarationDocument
	if decodeError := yaml.Unmarshal(content, &document); decodeError != nil {
		return nil, fmt.Errorf(declarationParseErrorTemplateConstant, decodeError)
	}

	forge := strings.TrimSuffix(strings.TrimSpace(document.Forge), forgeSeparatorConstant)
	declarations := make([]ModuleDeclaration, 0, len(document.Modules))
	for _, entry := range document.Modules {
		name := entry.Name
		if len(name) == 0 {
			return nil, ErrModuleNameMissing
		}

		sourceURL := strings.TrimSpace(entry.SourceURL)
		if len(sourceURL) == 0 {
			if len(forge) == 0 {
				return nil, &SourceUndeterminedError{Name: name}
			}
			sourceURL = forge + forgeSeparatorConstant + name + gitRepositorySuffixConstant
		}

		declarations = append(declarations, ModuleDeclaration{
			Name:      name,
			SourceURL: sourceURL,
			Reference: strings.TrimSpace(entry.Reference),
		})
	}
	return declarations, nil
}

// Validate checks every declared module name and returns the first violation.
func Validate(declarations []ModuleDeclaration) error {
	for _, declaration := range declarations {
		if validationError := ValidateModuleName(declaration.Name); validationError != nil {
			return validationError
		}
	}
	return nil
}

// Names returns the set of declared module names.
func Names(declarations []ModuleDeclaration) map[string]struct{} {
	names := make(map[string]struct{}, len(declarations))
	for _, declaration := range declarations {
		names[declaration.Name] = struct{}{}
	}
	return names
}
