// Package backends contains the source backend implementations.
//
// Each subpackage implements the driven.Backend contract for one source
// kind. Interactive backends (webform, staging, scanner) accept one
// user-submitted file per upload; periodic backends (watchfolder,
// imapmail, popmail) are polled by the scheduler and consume what they
// returned only after ingestion succeeds.
//
// Backends are constructed lazily per source from the source's Config
// map and hold no persistent state of their own. Failures contacting
// the external medium are wrapped in domain.SourceError so the caller
// can log them against the source without crashing the scheduler.
package backends
