package main

import (
	"log"

	"stakecurate/services/contestd"
)

func main() {
	if err := contestd.Main(); err != nil {
		log.Fatalf("contestd: %v", err)
	}
}
