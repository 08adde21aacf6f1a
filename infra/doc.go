// Package infra contains technical adapters such as relay board drivers,
// storage backends and metrics exporters. These packages depend only on the
// interfaces defined in the core packages.
package infra
