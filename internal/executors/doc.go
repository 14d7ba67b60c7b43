// Package executors implements the four pipeline stages: extract, chunk,
// embed and index. Each executor is stateless; the dispatcher supplies
// the document and earlier stage outputs and persists what is returned.
package executors
