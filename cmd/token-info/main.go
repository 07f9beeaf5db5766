// token-info decodes an identity token without verifying it and prints
// the fields the client will use. Handy for checking what a token
// carries before pointing the client at a live backend.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/patterniq/patterniq-client/internal/identity"
)

func main() {
	tokenFlag := flag.String("token", "", "identity token (falls back to PATTERNIQ_ID_TOKEN)")
	flag.Parse()

	raw := strings.TrimSpace(*tokenFlag)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("PATTERNIQ_ID_TOKEN"))
	}
	if raw == "" {
		log.Fatal("no token: pass -token or set PATTERNIQ_ID_TOKEN")
	}

	id, err := identity.FromToken(raw)
	if err != nil {
		log.Fatalf("parse token: %v", err)
	}

	fmt.Printf("subject:      %s\n", id.Subject)
	fmt.Printf("display name: %s\n", id.DisplayName)
	fmt.Printf("email:        %s\n", id.Email)
	fmt.Printf("picture:      %s\n", id.Picture)
}
