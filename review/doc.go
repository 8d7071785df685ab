/*
Package review implements the checkpoint review pipeline: the workflow and
checkpoint state machines, the immutable registry of review gates, reviewer
decision processing, auto-approval evaluation, and the engine that drives
every load-mutate-save cycle against a workflow store.

A Workflow is one end-to-end run of the pipeline for a single generated
document. It carries five Checkpoints, one per registry gate, each advancing
through pending -> ready_for_review -> (under_review) -> approved, rejected,
or revision_requested under a single consolidated transition table. All
mutations go through the Engine, which retries on optimistic-concurrency
conflicts and publishes events after successful saves.
*/
package review
