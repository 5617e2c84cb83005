// Package confloader loads storekit configuration from layered sources.
//
// Sources are merged with koanf in increasing priority: defaults, YAML
// file, environment variables. A companion fsnotify watcher reports file
// changes so the embedding application can reload.
package confloader
