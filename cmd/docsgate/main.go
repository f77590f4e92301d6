package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "build":
		err = runBuild()
	case "status":
		err = runStatus(os.Stdout)
	case "version":
		fmt.Printf("docsgate %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`docsgate - Documentation for GitHub sponsors

Usage:
  docsgate <command>

Commands:
  serve         Start the HTTP server
  build         Export every page to DIST_DIR with Open Graph images
  status        Show the last export and recent logins
  version       Print the docsgate version
  help          Show this help message

Configuration is read from the environment (APP_KEY, GITHUB_CLIENT_ID,
GITHUB_CLIENT_SECRET, GITHUB_CALLBACK_URL, GITHUB_API_SECRET, APP_URL, ...).`)
}
