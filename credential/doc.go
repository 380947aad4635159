// Package credential defines the user record and the Credential Store contract.
//
// Implementations live in sub-packages (sqlite, mongo). Every implementation
// must enforce the settings capacity itself so that concurrent writers cannot
// push a user past [settings.MaxEntries] entries.
package credential
