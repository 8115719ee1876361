// Package source provides policy sources that feed the policy store.
//
// FileSource loads semicolon-terminated .apl policies from a file or
// directory and can watch the path with fsnotify, pushing the full reparsed
// set into the store on change (debounced). MemorySource serves fixed
// policies for tests.
//
// Sources are an ingestion path only: policies loaded here go through the
// same parse-and-validate pipeline as policies submitted via the CRUD API.
package source
