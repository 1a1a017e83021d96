package db

import _ "embed"

// Schema provisions every report table of a shard.
//
//go:embed schema.sql
var Schema string

// LookupSchema provisions the shard lookup table of the control database.
//
//go:embed lookup.sql
var LookupSchema string

// SearchSchema provisions the search index database.
//
//go:embed search.sql
var SearchSchema string
