// Command dealer-ops is the platform's single binary: cmd.Execute
// dispatches to serve (default), migrate, scrape, and version.
package main

import "github.com/ayubfarah/dealer-ops-core/cmd"

func main() {
	cmd.Execute()
}
