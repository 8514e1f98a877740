// Package main is a development utility for generating a gateway API key with
// its hash and display hint pre-computed. It prints the raw key, the stored
// hash, and a ready-to-run SQL INSERT so developers can quickly seed a usable
// key in a local database without a provisioning service. Generated keys are
// for development databases; production keys should be provisioned with real
// organization and plan references.
package main

import (
	"fmt"
	"log"

	"github.com/zenith-gateway/zenith-gateway/internal/auth"
)

func main() {
	rawKey, hash, hint, err := auth.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Zenith API Key Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nFull Key:  %s\n", rawKey)
	fmt.Printf("\nKey Hash:  %s\n", hash)
	fmt.Printf("\nHint:      %s\n", hint)
	fmt.Println("\n==========================================================")
	fmt.Println("SQL Insert:")
	fmt.Println("==========================================================")
	fmt.Printf(`
INSERT INTO api_keys (id, org_id, key_hash, hint, status, plan_id)
VALUES (
    gen_random_uuid(),
    (SELECT id FROM organizations WHERE name = 'dev'),
    '%s',
    '%s',
    'active',
    (SELECT id FROM plans WHERE name = 'free')
);
`, hash, hint)
	fmt.Println("\n==========================================================")
	fmt.Printf("Request Header: X-Zenith-Key: %s\n", rawKey)
	fmt.Println("==========================================================")
}
