// Package extractors provides TextExtractor implementations for each
// supported file type and the registry the extract stage selects them from.
//
// Extractors are registered with the Registry at startup.
package extractors
