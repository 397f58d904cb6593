package database

import (
	"fmt"
	"strings"
)

// ConstructDatabaseURL joins a base server URL with a database name.
// sslmode=disable is appended unless the URL already sets sslmode.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	baseURL = strings.TrimRight(baseURL, "/")

	path, query, hasQuery := strings.Cut(baseURL, "?")
	databaseURL := path + "/" + databaseName
	if hasQuery {
		databaseURL += "?" + query
	}

	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "&"
		if !hasQuery {
			separator = "?"
		}
		databaseURL = fmt.Sprintf("%s%ssslmode=disable", databaseURL, separator)
	}

	return databaseURL
}
