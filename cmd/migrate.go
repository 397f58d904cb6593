package cmd

import (
	"fmt"

	"sportsbook/database"
)

// Migrate applies a schema migration verb: up, down [steps] or status
func Migrate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing migrate verb, expected up, down or status")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migrate verb %q", args[0])
	}
}
