// Package testutil provides shared helpers for the reviewflow test suites:
// context builders with automatic cleanup and polling assertions for
// asynchronous conditions.
//
// Subpackages:
//
//   - testutil/fixtures: producer payloads that meet or miss the default
//     auto-approval thresholds, per review gate.
//   - testutil/mocks: store wrappers that inject version conflicts and
//     backend failures into engine tests.
package testutil
