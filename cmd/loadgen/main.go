// cmd/loadgen fires concurrent registration requests at a running server and
// tallies the outcomes. Useful for observing the capacity invariant under
// contention: with N distinct users against a lecture of capacity C, exactly
// min(N, C) requests should be admitted.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		addr      = flag.String("addr", "http://localhost:8080", "server base URL")
		lectureID = flag.String("lecture", "", "lecture id to register for (required)")
		requests  = flag.Int("n", 40, "number of concurrent requests")
		sameUser  = flag.Bool("same-user", false, "send every request as the same user")
	)
	flag.Parse()

	if *lectureID == "" {
		log.Fatal("missing -lecture")
	}

	var admitted, full, duplicate, conflict, other atomic.Int64

	client := &http.Client{Timeout: 30 * time.Second}
	g, ctx := errgroup.WithContext(context.Background())

	start := time.Now()
	for i := 0; i < *requests; i++ {
		userID := fmt.Sprintf("user-%d", i)
		if *sameUser {
			userID = "user-0"
		}
		g.Go(func() error {
			body, _ := json.Marshal(map[string]string{
				"userId":    userID,
				"lectureId": *lectureID,
			})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				*addr+"/lectures/register", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusCreated {
				admitted.Add(1)
				return nil
			}

			var envelope struct {
				Code int `json:"code"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&envelope)
			switch envelope.Code {
			case 2001:
				full.Add(1)
			case 2002:
				duplicate.Add(1)
			case 2003, 2004:
				conflict.Add(1)
			default:
				other.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("request failed: %v", err)
	}
	elapsed := time.Since(start)

	fmt.Println("========== LOAD RESULTS ==========")
	fmt.Printf("Requests:           %d\n", *requests)
	fmt.Printf("Admitted:           %d\n", admitted.Load())
	fmt.Printf("Lecture full:       %d\n", full.Load())
	fmt.Printf("Already registered: %d\n", duplicate.Load())
	fmt.Printf("Conflict/timeout:   %d\n", conflict.Load())
	fmt.Printf("Other failures:     %d\n", other.Load())
	fmt.Printf("Elapsed:            %s\n", elapsed)
}
