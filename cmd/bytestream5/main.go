package main

import (
	"log"
	"strings"
)

func main() {
	if err := executeCliCommand(); err != nil {
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "configuration"):
			log.Fatalf("configuration error: %v\n\ntip: run 'bytestream5 config init' to create a sample configuration file", err)
		case strings.Contains(errMsg, "redis"):
			log.Fatalf("proxy-cache backend error: %v\n\ncheck cache.redis_addr and that the Redis server is reachable", err)
		case strings.Contains(errMsg, "bind") || strings.Contains(errMsg, "address already in use"):
			log.Fatalf("network error: %v\n\nanother process may already be using this port", err)
		default:
			log.Fatalf("command failed: %v\n\nfor help, run: bytestream5 --help", err)
		}
	}
}
