// Command seed-leads posts a few sample form submissions to a running API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/xavierca1/zag-leads/internal/infra/http/middleware"
)

var samples = []map[string]string{
	{
		"email":         "sarah@startup.com",
		"name":          "Sarah Chen",
		"company":       "TechStartup Inc",
		"title":         "CEO & Founder",
		"linkedin":      "https://linkedin.com/in/sarahchen",
		"interested_in": "linkedin_presence",
		"source":        "referral",
	},
	{
		"email":         "marco@agency.io",
		"first_name":    "Marco",
		"company":       "Northwind Agency",
		"title":         "Marketing Manager",
		"interested_in": "content_writing",
		"source":        "website",
	},
	{
		"email":  "jo@gmail.com",
		"name":   "Jo",
		"source": "cold_outreach",
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	secret := os.Getenv("WEBHOOK_SECRET")
	client := &http.Client{Timeout: 10 * time.Second}

	for _, form := range samples {
		body, err := json.Marshal(form)
		if err != nil {
			log.Fatal(err)
		}
		req, err := http.NewRequest(http.MethodPost, baseURL+"/webhook/lead", bytes.NewReader(body))
		if err != nil {
			log.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(middleware.SignatureHeader, middleware.Sign(secret, body))
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("post %s: %v", form["email"], err)
		}
		out, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		fmt.Printf("%-22s %d %s\n", form["email"], resp.StatusCode, bytes.TrimSpace(out))
	}
}
