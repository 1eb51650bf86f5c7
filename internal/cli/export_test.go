package cli

var BindEnvVars = bindEnvVars

var IsUsageError = isUsageError
