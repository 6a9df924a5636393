// Package profile prepares the external browser profile that carries the
// telemetry extension.
//
// Synchronizer.Sync runs once at startup and performs three independent,
// idempotent steps:
//
//  1. Create the profile directory if it is missing.
//  2. Write extension-preferences.json from the embedded template if it is
//     missing. The file enables the extension on every site.
//  3. Register the profile in the browser's profiles.ini if no section
//     names it, by appending a new [ProfileN] section.
//
// Every failure is logged and recorded in the Result; none is returned as
// an error, because a missing profile only means the extension may not be
// active.
//
// Design decision: Where the browser keeps its files is decided by a
// Locator. The default locator knows the Firefox layouts of Linux, macOS
// and Windows, and tests inject their own.
package profile
