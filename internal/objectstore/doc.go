// Package objectstore authenticates against Keystone and builds Swift service
// clients from validated object store settings.
package objectstore
