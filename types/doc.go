// Copyright (c) Reviewflow Authors.
// Licensed under the MIT License.

/*
Package types provides the shared leaf types of reviewflow.

It contains the structured error envelope used across all packages, the
closed attribute-value variant that carries producer payloads, and
request-scoped context helpers. The package depends only on the standard
library so every other package can import it freely.
*/
package types
