// Package simpleupload manages the lifecycle of files uploaded into fields
// of persisted records.
//
// A Behavior is configured with a blob store and a set of managed fields.
// Call BeforeSave before persisting a record: each field with a pending
// upload has its storage key resolved from a path template, the file is
// moved into place, the record field is set to the stored location and the
// file is run through a recognizer chain that fills in MIME type and
// encoding. Call BeforeDelete before removing a record: a stored file is
// deleted only when no other record still references it.
//
// Blob stores (memory, filesystem, S3) and record repositories (memory,
// Postgres) are provided under subpackages. The config subpackage assembles
// a ready Behavior from a config file and UPLOAD_ environment variables.
//
// Path Templates
//
// Templates are slash separated paths containing tokens such as :id, :uid,
// :y, :m, :d, :md5, :fast-uniq and :.ext. Leading and trailing separators are
// dropped and no extension is appended implicitly. Custom tokens are
// registered with WithToken.
//
// Reference Counting
//
// Deleting a record only removes a stored file when exactly one record
// references its location. Files named as a field's DefaultFile are never
// removed.
package simpleupload
