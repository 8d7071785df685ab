// Copyright (c) Reviewflow Authors.
// Licensed under the MIT License.

/*
Package store provides the durable persistence backends for workflow
aggregates.

Every backend implements review.Store with the same contract: Create assigns
a fresh id, Save is a compare-and-swap write keyed on the aggregate's
version stamp, Load distinguishes an absent record (NOT_FOUND) from a
damaged one (STORAGE), and List skips damaged records instead of aborting
enumeration. Aggregates cross the store boundary as deep copies, so callers
mutate freely between load and save.

Backends: MemoryStore (tests, ephemeral deployments), FileStore (one JSON
document per workflow, the default), RedisStore, DatabaseStore (gorm over
postgres/mysql/sqlite), and MongoStore.
*/
package store
