// Package confloader loads layered configuration with koanf and watches the
// configuration file with fsnotify.
//
// Layers, highest priority first:
//
//  1. Overrides, usually from --set key=value flags
//  2. Environment variables: SYNCMESH_ prefix, "__" between sections
//  3. The YAML configuration file
//  4. Defaults
package confloader
