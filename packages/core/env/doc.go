// Package env loads dotenv files into the process environment so that
// configuration values and flag defaults can reference them.
package env
