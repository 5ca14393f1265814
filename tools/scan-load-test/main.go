package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Fires N concurrent redemption attempts with the same token secret against
// a running API. Exactly one of them should succeed; every other attempt
// should come back 409 replay.
func main() {
	url := flag.String("url", "http://localhost:8080/api/v1/tokens/redeem", "redeem endpoint")
	secret := flag.String("secret", "", "token secret to hammer")
	attempts := flag.Int("n", 50, "number of concurrent redemption attempts")
	flag.Parse()

	if *secret == "" {
		fmt.Println("usage: scan-load-test -secret <token secret> [-n 50]")
		return
	}

	payload := []byte(fmt.Sprintf(`{"secret": %q}`, *secret))

	var wg sync.WaitGroup
	var successCount, replayCount, otherCount int64

	start := make(chan struct{})
	startTime := time.Now()

	for i := 0; i < *attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start // Line everyone up so the requests land together

			resp, err := http.Post(*url, "application/json", bytes.NewBuffer(payload))
			if err != nil {
				atomic.AddInt64(&otherCount, 1)
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				atomic.AddInt64(&successCount, 1)
			case resp.StatusCode == http.StatusConflict:
				atomic.AddInt64(&replayCount, 1)
			default:
				atomic.AddInt64(&otherCount, 1)
			}
		}()
	}

	close(start)
	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Concurrent Redemption Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Attempts:       %d\n", *attempts)
	fmt.Printf("Succeeded:      %d\n", successCount)
	fmt.Printf("Replay (409):   %d\n", replayCount)
	fmt.Printf("Other:          %d\n", otherCount)

	if successCount == 1 {
		fmt.Println("OK: exactly one redemption won")
	} else {
		fmt.Printf("BROKEN: expected exactly 1 success, got %d\n", successCount)
	}
}
