// This program provides administrative tooling for the plastix service:
// signing key management, schema migration and seeding, and operational
// calls against a running service.
package main

import (
	"github.com/plastix-network/plastix/app/tooling/plastix-admin/commands"
)

func main() {
	commands.Execute()
}
