// Package output provides output formatting for storekit-cli.
//
// Commands build explicit tables or hand over plain values; the selected
// formatter decides how they reach the terminal.
package output
