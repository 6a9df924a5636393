// Package browser takes DOM snapshots with a real, headless browser.
//
// The crawler package reads the HTML a server sends. Single-page
// applications build most of their links in script, so this package loads
// the scan target in Chromium through Playwright, waits for the network to
// settle and reads the URLs out of the rendered DOM. Provider satisfies the
// same snapshot interface as the crawler's DOMSnapshot.
package browser
