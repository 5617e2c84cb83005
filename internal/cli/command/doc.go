// Package command defines the storekit-cli commands.
//
// Every command opens the storage root directly: discover the namespace
// files, run one operation through the manager, flush and exit. The CLI is
// an offline maintenance tool, not a client of a running service.
package command
