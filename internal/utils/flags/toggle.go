// Package flags provides pflag value types shared by modsync commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue       = "true"
	toggleFalseCanonicalValue      = "false"
	toggleTypeNameConstant         = "toggle"
	toggleParseErrorTemplate       = "invalid toggle value %q (use yes or no)"
	toggleUsageTemplateConstant    = "`%s` %s"
	toggleTruePlaceholderConstant  = "<YES|no>"
	toggleFalsePlaceholderConstant = "<yes|NO>"
	longFlagPrefixConstant         = "--"
	shortFlagPrefixConstant        = "-"
	flagValueAssignmentConstant    = "="
	argumentTerminatorConstant     = "--"
)

var toggleLiterals = map[string]bool{
	"true":  true,
	"yes":   true,
	"on":    true,
	"1":     true,
	"t":     true,
	"y":     true,
	"false": false,
	"no":    false,
	"off":   false,
	"0":     false,
	"f":     false,
	"n":     false,
}

// AddToggleFlag registers a boolean flag accepting yes/no style values. A bare flag means yes.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	value := &toggleValue{target: target}
	value.assign(defaultValue)
	flagSet.VarP(value, name, shorthand, formatToggleUsage(usage, defaultValue))
	flagSet.Lookup(name).NoOptDefVal = toggleTrueCanonicalValue
}

// NormalizeToggleArguments rewrites "--flag value" into "--flag=value" for toggle flags
// registered on flagSet, so that a detached yes/no value is not parsed as a positional argument.
func NormalizeToggleArguments(flagSet *pflag.FlagSet, arguments []string) []string {
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == argumentTerminatorConstant {
			return append(normalized, arguments[index:]...)
		}

		if isDetachedToggle(flagSet, current) && index+1 < len(arguments) {
			if _, literal := toggleLiterals[strings.ToLower(strings.TrimSpace(arguments[index+1]))]; literal {
				normalized = append(normalized, current+flagValueAssignmentConstant+arguments[index+1])
				index++
				continue
			}
		}
		normalized = append(normalized, current)
	}
	return normalized
}

func isDetachedToggle(flagSet *pflag.FlagSet, argument string) bool {
	if flagSet == nil || strings.Contains(argument, flagValueAssignmentConstant) {
		return false
	}

	var flag *pflag.Flag
	switch {
	case strings.HasPrefix(argument, longFlagPrefixConstant):
		flag = flagSet.Lookup(strings.TrimPrefix(argument, longFlagPrefixConstant))
	case strings.HasPrefix(argument, shortFlagPrefixConstant) && len(argument) == 2:
		flag = flagSet.ShorthandLookup(strings.TrimPrefix(argument, shortFlagPrefixConstant))
	}
	if flag == nil {
		return false
	}
	_, isToggle := flag.Value.(*toggleValue)
	return isToggle
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleTruePlaceholderConstant
	}
	return fmt.Sprintf(toggleUsageTemplateConstant, placeholder, strings.TrimSpace(description))
}

type toggleValue struct {
	current bool
	target  *bool
}

func (value *toggleValue) assign(parsed bool) {
	value.current = parsed
	if value.target != nil {
		*value.target = parsed
	}
}

func (value *toggleValue) Set(rawValue string) error {
	normalized := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalized) == 0 {
		normalized = toggleTrueCanonicalValue
	}
	parsed, known := toggleLiterals[normalized]
	if !known {
		return fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}
	value.assign(parsed)
	return nil
}

func (value *toggleValue) String() string {
	if value != nil && value.current {
		return toggleTrueCanonicalValue
	}
	return toggleFalseCanonicalValue
}

func (value *toggleValue) Type() string {
	return toggleTypeNameConstant
}
