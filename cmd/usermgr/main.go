package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/database"
	"github.com/go-while/go-mcnttp/internal/models"
)

var (
	configPath string
	mainDBPath string
	addUser    string
	delUser    string
	updateUser string
	grantUser  string
	listUsers  bool
	legacyHash bool

	mailbox       string
	canApproveAny bool
	canCancel     bool
	canCreate     bool
	canDelete     bool
	canCheck      bool
	canInject     bool
	localOnly     bool
	moderates     string
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion

	flag.StringVar(&configPath, "config", "", "path to TOML configuration file")
	flag.StringVar(&mainDBPath, "maindb", "", "path to the sqlite database file (overrides config)")
	flag.StringVar(&addUser, "add", "", "create a principal with this username")
	flag.StringVar(&delUser, "delete", "", "delete the principal with this username")
	flag.StringVar(&updateUser, "password", "", "set a new password for this username")
	flag.StringVar(&grantUser, "grant", "", "rewrite capabilities for this username")
	flag.BoolVar(&listUsers, "list", false, "list all principals")
	flag.BoolVar(&legacyHash, "legacy", false, "store the password in the legacy salted SHA-512 format")

	flag.StringVar(&mailbox, "mailbox", "", "mailbox recorded in Approved headers")
	flag.BoolVar(&canApproveAny, "can-approve-any", false, "may approve postings in every catalog")
	flag.BoolVar(&canCancel, "can-cancel", false, "may cancel articles")
	flag.BoolVar(&canCreate, "can-create-catalogs", false, "may create catalogs (newgroup)")
	flag.BoolVar(&canDelete, "can-delete-catalogs", false, "may delete catalogs (rmgroup)")
	flag.BoolVar(&canCheck, "can-check-catalogs", false, "may issue checkgroups")
	flag.BoolVar(&canInject, "can-inject", false, "may set injection headers verbatim")
	flag.BoolVar(&localOnly, "local-only", false, "may only authenticate from loopback")
	flag.StringVar(&moderates, "moderates", "", "comma-separated catalogs this principal moderates")
	flag.Parse()

	mainConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if mainDBPath != "" {
		mainConfig.Database.MainDB = mainDBPath
	}

	db, err := database.OpenDatabase(database.DefaultDBConfig(mainConfig.Database.MainDB))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Shutdown()

	switch {
	case addUser != "":
		p := principalFromFlags(addUser)
		password := promptPassword("New password for " + addUser)
		if legacyHash {
			err = db.InsertLegacyPrincipal(p, password)
		} else {
			err = db.InsertPrincipal(p, password)
		}
		if err != nil {
			log.Fatalf("Failed to create %s: %v", addUser, err)
		}
		fmt.Printf("Created principal %s (id %d)\n", p.Username, p.ID)

	case delUser != "":
		if err := db.DeletePrincipal(delUser); err != nil {
			log.Fatalf("Failed to delete %s: %v", delUser, err)
		}
		fmt.Printf("Deleted principal %s\n", delUser)

	case updateUser != "":
		password := promptPassword("New password for " + updateUser)
		if err := db.UpdatePrincipalSecret(updateUser, password); err != nil {
			log.Fatalf("Failed to update password for %s: %v", updateUser, err)
		}
		fmt.Printf("Updated password for %s\n", updateUser)

	case grantUser != "":
		p := principalFromFlags(grantUser)
		if err := db.UpdatePrincipalGrants(p); err != nil {
			log.Fatalf("Failed to update grants for %s: %v", grantUser, err)
		}
		fmt.Printf("Updated grants for %s\n", grantUser)

	case listUsers:
		principals, err := db.ListPrincipals()
		if err != nil {
			log.Fatalf("Failed to list principals: %v", err)
		}
		for _, p := range principals {
			fmt.Printf("%-20s %s moderates=[%s]\n",
				p.Username, capabilityString(p), strings.Join(p.Moderates, ","))
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func principalFromFlags(username string) *models.Principal {
	p := &models.Principal{
		Username:          username,
		Mailbox:           mailbox,
		CanApproveAny:     canApproveAny,
		CanCancel:         canCancel,
		CanCreateCatalogs: canCreate,
		CanDeleteCatalogs: canDelete,
		CanCheckCatalogs:  canCheck,
		CanInject:         canInject,
		LocalAuthOnly:     localOnly,
	}
	for _, g := range strings.Split(moderates, ",") {
		if g = strings.TrimSpace(g); g != "" {
			p.Moderates = append(p.Moderates, g)
		}
	}
	return p
}

func capabilityString(p *models.Principal) string {
	var caps []string
	if p.CanApproveAny {
		caps = append(caps, "approve-any")
	}
	if p.CanCancel {
		caps = append(caps, "cancel")
	}
	if p.CanCreateCatalogs {
		caps = append(caps, "newgroup")
	}
	if p.CanDeleteCatalogs {
		caps = append(caps, "rmgroup")
	}
	if p.CanCheckCatalogs {
		caps = append(caps, "checkgroups")
	}
	if p.CanInject {
		caps = append(caps, "inject")
	}
	if p.LocalAuthOnly {
		caps = append(caps, "local-only")
	}
	if len(caps) == 0 {
		return "-"
	}
	return strings.Join(caps, ",")
}

// promptPassword reads a password without echo, twice.
func promptPassword(prompt string) string {
	fmt.Printf("%s: ", prompt)
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	fmt.Print("Repeat: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	if string(first) != string(second) {
		log.Fatalf("Passwords do not match")
	}
	if len(first) == 0 {
		log.Fatalf("Empty password refused")
	}
	return string(first)
}
