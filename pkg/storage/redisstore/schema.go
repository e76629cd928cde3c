package redisstore

import "fmt"

// Redis key pattern helpers
//
// All keys share the client's prefix so several archives (or test runs) can
// coexist on one Redis server.
//
// Namespace registry: {prefix}:namespaces                 (SET)
// Object:             {prefix}:ns:{namespace}:obj:{key}   (HASH data, content_type)
// Table registry:     {prefix}:tables                     (SET)
// Table:              {prefix}:table:{table}              (HASH row_key -> JSON fields)

const (
	fieldData        = "data"
	fieldContentType = "content_type"
)

// NamespacesKey returns the key of the namespace registry set.
func NamespacesKey(prefix string) string {
	return fmt.Sprintf("%s:namespaces", prefix)
}

// ObjectKeyPrefix returns the common key prefix of every object in a namespace.
func ObjectKeyPrefix(prefix, namespace string) string {
	return fmt.Sprintf("%s:ns:%s:obj:", prefix, namespace)
}

// ObjectKey returns the Redis key for an object.
func ObjectKey(prefix, namespace, key string) string {
	return ObjectKeyPrefix(prefix, namespace) + key
}

// ObjectPattern returns the SCAN MATCH pattern for every object in a namespace.
func ObjectPattern(prefix, namespace string) string {
	return ObjectKeyPrefix(prefix, namespace) + "*"
}

// TablesKey returns the key of the table registry set.
func TablesKey(prefix string) string {
	return fmt.Sprintf("%s:tables", prefix)
}

// TableKey returns the Redis key of the hash holding a table's rows.
func TableKey(prefix, table string) string {
	return fmt.Sprintf("%s:table:%s", prefix, table)
}
