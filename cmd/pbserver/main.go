// Command pbserver runs an embedded PocketBase with the campus collections migrated in.
// Start it with "pbserver serve" and point POCKETBASE_URL at it.
package main

import (
	"log"

	"github.com/pocketbase/pocketbase"

	_ "campus-locator/migrations"
)

func main() {
	app := pocketbase.New()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
