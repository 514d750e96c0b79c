// Seed script for provisioning demo tenants through the admin API.
// Run with: go run ./scripts/seed.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coderisedev/cs-sub003/internal/identity"
	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
)

type demoTenant struct {
	name     string
	slug     string
	plan     string
	products []string
}

type provisioned struct {
	Tenant struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	} `json:"tenant"`
	SalesChannel struct {
		ID string `json:"id"`
	} `json:"sales_channel"`
}

func main() {
	// Load environment
	envFile := os.Getenv("TENANCY_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	baseURL := os.Getenv("TENANCY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second)

	// Mint a short-lived admin token when auth is enabled
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		token, err := identity.NewJWTVerifier([]byte(secret), os.Getenv("ADMIN_JWT_ISSUER")).Sign("seed-script", 10*time.Minute)
		if err != nil {
			log.Fatalf("Failed to sign admin token: %v", err)
		}
		client.SetAuthToken(token)
	}

	health, err := client.R().Get("/health")
	if err != nil || health.IsError() {
		log.Fatalf("Server not reachable at %s: %v", baseURL, err)
	}
	fmt.Printf("Connected to %s\n", baseURL)

	tenants := []demoTenant{
		{"Acme Outfitters", "acme", "pro", []string{"Trail Jacket", "Camp Stove", "Headlamp"}},
		{"Globex Coffee", "globex", "free", []string{"House Blend", "Espresso Roast"}},
		{"Initech Supplies", "initech", "enterprise", nil},
	}

	for _, dt := range tenants {
		var out provisioned
		resp, err := client.R().
			SetBody(map[string]string{
				"name":                 dt.name,
				"slug":                 dt.slug,
				"external_identity_id": "seed|" + dt.slug,
				"plan":                 dt.plan,
			}).
			SetResult(&out).
			Post("/tenants")
		if err != nil {
			log.Fatalf("Failed to provision %s: %v", dt.slug, err)
		}
		if resp.StatusCode() == 409 {
			fmt.Printf("Tenant %s already exists, skipping\n", dt.slug)
			continue
		}
		if resp.IsError() {
			log.Fatalf("Failed to provision %s (%d): %s", dt.slug, resp.StatusCode(), resp.String())
		}
		fmt.Printf("Provisioned tenant %s: %s (sales channel %s)\n", dt.slug, out.Tenant.ID, out.SalesChannel.ID)

		for _, title := range dt.products {
			resp, err := client.R().
				SetHeader("X-Tenant-ID", out.Tenant.ID).
				SetBody(map[string]string{"title": title}).
				Post("/admin/products")
			if err != nil {
				log.Printf("Warning: Failed to create product %q for %s: %v", title, dt.slug, err)
				continue
			}
			if resp.IsError() {
				log.Printf("Warning: Failed to create product %q for %s (%d): %s", title, dt.slug, resp.StatusCode(), resp.String())
				continue
			}
			fmt.Printf("  Created product: %s\n", title)
		}
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nTo browse a storefront, use:")
	fmt.Printf("curl %s/shop/acme/products\n", baseURL)
}
