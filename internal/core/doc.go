// Package core provides the business logic for patient record ingestion.
//
// This package holds all domain logic independent of any transport or
// storage layer. It can be used by web handlers, CLI commands, or tests
// against any [Store] implementation.
//
// # Architecture
//
// The package is organized around four pieces:
//
//   - Field validators: one function per [FieldType], driven by [FieldSpecs].
//   - Record validation: [Validator] turns a [RawRecord] into a [Patient]
//     or a [Patch], failing fast unless configured to accumulate errors.
//   - Identifiers: [Allocator] derives the next patient_id from the store;
//     bulk loads assign them by row position instead.
//   - Repository: [Repository] composes the above into add, find, update,
//     delete and bulk load.
//
// # Bulk Load
//
// A bulk load replaces the store contents:
//
//  1. The store is cleared
//  2. Row i gets patient_id P00001 + i, whether or not it validates
//  3. Rows are validated one by one; failures are collected in the summary
//  4. Valid rows are inserted in batches of [Options.BatchSize]
//  5. The final count is read back from the store
//
// A failing batch is logged and skipped. Within a process, [LoadGate]
// keeps two loads from running at once.
//
// # Error Handling
//
// Every error returned by the repository wraps one of the sentinels in
// errors.go. [MapError] converts any error to a coded user message:
//
//   - VAL001-VAL004: validation errors
//   - PAT001-PAT002: lookup and identifier errors
//   - LOAD001, FILE001-FILE003: bulk load input errors
//   - DB001-DB002: store errors
package core
