// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunSetSetting, etc.) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. This keeps the Engine type thin and lets every branch be tested
// with plain function stubs.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, credential store, token
// manager, password hasher and metrics. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sessiongate (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
