package utils

// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes fatal errors logged by the entry point.
const ApplicationExecutionFailedMessage = "apc failed"

// BinaryContentPlaceholder replaces the content of binary files when binary inclusion is enabled.
const BinaryContentPlaceholder = "[Binary content]"

// DefaultMaxFileSize is the default byte threshold above which files are skipped.
const DefaultMaxFileSize int64 = 1048576
