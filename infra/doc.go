// Package infra contains technical adapters: ledger backends, MQTT
// publishing, metrics exporters, logging and error monitoring. These
// packages depend only on the interfaces defined in the core packages.
package infra
