// seckill-bench fires concurrent seckill requests at a running server and
// reports the outcome split. With -users >= stock, exactly stock requests
// should succeed.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		addr    = flag.String("addr", "http://localhost:8080", "server base URL")
		voucher = flag.Int64("voucher", 1, "voucher id")
		users   = flag.Int("users", 200, "number of distinct concurrent users")
	)
	flag.Parse()

	url := fmt.Sprintf("%s/vouchers/%d/seckill", *addr, *voucher)
	client := &http.Client{Timeout: 5 * time.Second}

	var ok, soldOut, duplicate, failed atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < *users; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			req, err := http.NewRequest(http.MethodPost, url, nil)
			if err != nil {
				failed.Add(1)
				return
			}
			req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))

			resp, err := client.Do(req)
			if err != nil {
				failed.Add(1)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusGone:
				soldOut.Add(1)
			case http.StatusConflict:
				duplicate.Add(1)
			default:
				failed.Add(1)
			}
		}(i + 1)
	}
	wg.Wait()

	elapsed := time.Since(start)
	log.Printf("sent %d requests in %s", *users, elapsed)
	log.Printf("ok=%d sold_out=%d duplicate=%d failed=%d",
		ok.Load(), soldOut.Load(), duplicate.Load(), failed.Load())
}
