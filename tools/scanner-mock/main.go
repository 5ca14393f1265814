package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
)

// Simulates a wall-mounted scan device: takes a scanned secret and forwards
// it to the redeem endpoint the way the hardware would.
func main() {
	url := flag.String("url", "http://localhost:8080/api/v1/tokens/redeem", "redeem endpoint")
	scannerID := flag.String("scanner", "entrance-1", "scanner device id to report")
	action := flag.String("action", "", "expected action type (arrival/departure), empty to omit")
	secret := flag.String("secret", "", "scanned token secret")
	flag.Parse()

	if *secret == "" {
		fmt.Println("usage: scanner-mock -secret <token secret> [-scanner entrance-1] [-action arrival]")
		return
	}

	body := map[string]string{
		"secret":    *secret,
		"scannerId": *scannerID,
	}
	if *action != "" {
		body["expectedActionType"] = *action
	}

	payload, _ := json.Marshal(body)

	resp, err := http.Post(*url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("unreadable response (%d): %v", resp.StatusCode, err)
	}

	fmt.Printf("HTTP %d: %v\n", resp.StatusCode, out)
}
