// scope-console is an interactive shell over scopedb snapshot
// directories. It queries the Parquet files with DuckDB and renders
// ASCII envelope plots sized to the terminal.
package main

import (
	"flag"
	"log"

	"github.com/xtxerr/scopedb/internal/console"
)

func main() {
	dir := flag.String("dir", "/var/lib/scopedb/snapshots", "snapshot directory")
	flag.Parse()

	c, err := console.New(*dir)
	if err != nil {
		log.Fatalf("Open console: %v", err)
	}
	defer c.Close()

	console.NewREPL(c).Run()
}
