// Package textutil normalizes user-supplied text before it is persisted.
//
// Job titles arrive from multipart form fields and CLI flags and end up in
// JSON records, processing logs and terminal tables, so they are reduced to a
// single printable line here.
package textutil
