package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login         LoginDeps
	Account       AccountDeps
	Logout        LogoutDeps
	Validate      ValidateDeps
	Settings      SettingsDeps
	Introspection IntrospectionDeps
}

func noopMetric(int) {}

func noopWarn(string, ...any) {}
