// Command docs-crawler is the entrypoint for the CLI defined in
// internal/cli: by default it loads and prints the crawl configuration, or
// `docs-crawler serve` runs the long-running HTTP API.
package main

import (
	cmd "github.com/rohmanhakim/docs-crawler/internal/cli"
)

func main() {
	cmd.Execute()
}
