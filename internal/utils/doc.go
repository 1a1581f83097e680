// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses ConfigurationLoader, which layers embedded defaults, configuration
// files and MODSYNC_* environment variables through Viper, and LoggerFactory,
// which builds the diagnostic zap logger together with the timestamped event
// log that records installed, changed and removed modules.
package utils
