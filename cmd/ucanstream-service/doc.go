// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Command ucanstream-service runs the archive ingestion service: it
// accepts authenticated archives of signed invocations and receipts
// over HTTP, persists them content-addressed, resolves receipts back
// to their originating invocations, and publishes normalized records
// to the partitioned stream log.
//
// Configuration comes from a YAML file named by the UCANSTREAM_CONFIG
// environment variable or the --config flag. Use --generate-key to
// mint a service signing key for the configured signing_key_file.
package main
