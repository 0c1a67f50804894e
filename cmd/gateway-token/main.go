// Command gateway-token mints a bearer token for a messaging front-end.
//
//	GATEWAY_JWT_SECRET=... gateway-token -client telegram-bot -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/foldergate/foldergate/internal/gateway"
)

func main() {
	client := flag.String("client", "", "front-end name recorded in the token (required)")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime; 0 never expires")
	secret := flag.String("secret", os.Getenv("GATEWAY_JWT_SECRET"), "signing secret (default $GATEWAY_JWT_SECRET)")
	flag.Parse()

	if *client == "" || len(*secret) < 16 {
		fmt.Fprintln(os.Stderr, "usage: gateway-token -client NAME [-ttl DURATION] [-secret SECRET]")
		fmt.Fprintln(os.Stderr, "the secret must be at least 16 characters")
		os.Exit(2)
	}

	token, err := gateway.NewAuth(*secret).IssueToken(*client, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
