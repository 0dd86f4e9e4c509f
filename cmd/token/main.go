// Command token issues a registrar bearer token signed with the server's
// JWT settings. It is meant for development and smoke tests.
//
//	token -user 6f1c... -roles LRSTransaction.Register,LRSTransaction.Supervisor -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	jwttoken "landreg/internal/jwt_token"
	"landreg/internal/platform/config"
	id "landreg/pkg/domain"
	pstrings "landreg/pkg/platform/strings"
)

func main() {
	user := flag.String("user", "", "registrar user id (uuid)")
	roles := flag.String("roles", "", "comma separated role names")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*user, *roles, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
}

func run(user, roles string, ttl time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	userID, err := id.ParseUserID(user)
	if err != nil {
		return err
	}
	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, err := tokens.IssueRegistrarToken(userID, pstrings.DedupeAndTrim(strings.Split(roles, ",")), ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
