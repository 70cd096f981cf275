package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/gregLibert/pgp-token/internal/config"
	"github.com/gregLibert/pgp-token/pkg/token"
)

// The virtual token shell: boots an OpenPGP card over a directory-backed
// store and exchanges APDUs typed (or piped) as hex lines.
//
//	$ pgp-token
//	> 00 A4 04 00 06 D2 76 00 01 24 01
//	< 6F 19 84 10 D2 76 00 01 24 01 03 03 FF FE 00 00 00 01 00 00 A5 05 47 03 C0 00 80 90 00
func main() {
	configPath := flag.String("config", "token.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err)
	}

	serial, err := cfg.SerialBytes()
	if err != nil {
		log.Fatalf("Error in configuration: %s", err)
	}
	manufacturer, err := cfg.ManufacturerBytes()
	if err != nil {
		log.Fatalf("Error in configuration: %s", err)
	}

	var tracer logrus.FieldLogger
	if cfg.Debug {
		logger := logrus.New()
		logger.SetLevel(logrus.DebugLevel)
		tracer = logger
	}

	card, err := token.New(token.Config{
		StorageDir:   cfg.StoragePath,
		Manufacturer: manufacturer,
		Serial:       serial,
		Log:          tracer,
	})
	if err != nil {
		log.Fatalf("Error booting token: %s", err)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Printf(">> pgp-token | AID % X\n", card.AID())
		fmt.Println(">> Enter command APDUs as hex, one per line (ctrl-d quits).")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		apdu, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			fmt.Printf("! invalid hex: %s\n", err)
			continue
		}

		fmt.Printf("< % X\n", card.Exchange(apdu))
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("Error reading input: %s", err)
	}
}
