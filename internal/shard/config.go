package shard

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	configlibsql "fmcsa-backend/lib/configutil/libsql"
)

// Database is one physical place shards can live in. Local databases keep
// every shard in its own sqlite file under Dir, remote ones are libsql
// databases where "{schema}" in Url is replaced with the shard's schema.
type Database struct {
	Name          string `json:"name"`
	Dir           string `json:"dir"`
	Url           string `json:"url"`
	AuthToken     string `json:"auth_token"`
	BusyTimeoutMs int    `json:"busy_timeout_ms"`
}

type Config struct {
	Databases []Database `json:"databases"`
	// CreateShardsOn names the database new shards are created in,
	// the first database is used when empty.
	CreateShardsOn string `json:"create_shards_on"`
	SchemaPrefix   string `json:"schema_prefix"`
}

var shardName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

func validateName(name string) error {
	if !shardName.MatchString(name) {
		return fmt.Errorf("invalid shard name %q", name)
	}
	return nil
}

func (c Config) database(name string) (Database, error) {
	for _, d := range c.Databases {
		if d.Name == name {
			return d, nil
		}
	}
	return Database{}, fmt.Errorf("no database named %q is configured", name)
}

func (c Config) createTarget() (Database, error) {
	if c.CreateShardsOn != "" {
		return c.database(c.CreateShardsOn)
	}
	if len(c.Databases) == 0 {
		return Database{}, fmt.Errorf("no databases are configured")
	}
	return c.Databases[0], nil
}

func (d Database) source(schema string) (configlibsql.Struct, error) {
	switch {
	case d.Url != "":
		if !strings.Contains(d.Url, "{schema}") {
			return configlibsql.Struct{}, fmt.Errorf("database %s: url has no {schema} placeholder", d.Name)
		}
		return configlibsql.Struct{
			Url:       strings.ReplaceAll(d.Url, "{schema}", schema),
			AuthToken: d.AuthToken,
		}, nil
	case d.Dir != "":
		return configlibsql.Struct{
			File:          filepath.Join(d.Dir, schema+".db"),
			BusyTimeoutMs: d.BusyTimeoutMs,
		}, nil
	}
	return configlibsql.Struct{}, fmt.Errorf("database %s: neither dir nor url is set", d.Name)
}
