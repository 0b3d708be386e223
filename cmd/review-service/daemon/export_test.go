package daemon

// AppConfig exposes the application configuration for tests.
type AppConfig = appConfig

// SetArgs sets the arguments for the root command.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// Config returns the configuration of the app.
func (a App) Config() AppConfig {
	return a.config
}

// SetSilenceUsage overrides the usage silencing of the root command.
func (a *App) SetSilenceUsage(silence bool) {
	a.cmd.SilenceUsage = silence
}
