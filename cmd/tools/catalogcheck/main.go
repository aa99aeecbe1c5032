package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-labquote/internal/catalog"
	"github.com/noah-isme/backend-labquote/internal/pricing"
)

// catalogcheck validates that the price and details datasets join cleanly:
// every priced test should have handling details and every details entry
// should point at a priced test.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	pricesPath := flag.String("prices", os.Getenv("CATALOG_PRICES_PATH"), "path to the price dataset")
	detailsPath := flag.String("details", os.Getenv("CATALOG_DETAILS_PATH"), "path to the details dataset")
	strict := flag.Bool("strict", false, "exit nonzero when join issues are found")
	flag.Parse()

	if *pricesPath == "" {
		log.Fatal("prices path is required (flag -prices or CATALOG_PRICES_PATH)")
	}

	source := catalog.FileSource{PricesPath: *pricesPath, DetailsPath: *detailsPath}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cat := catalog.New()
	cat.Load(ctx, source, zerolog.New(os.Stderr).With().Timestamp().Logger())

	state, notice := cat.State()
	fmt.Printf("catalog state: %s\n", state)
	if notice != "" {
		fmt.Printf("notice: %s\n", notice)
	}
	fmt.Printf("priced tests: %d\n", cat.Len())

	items, err := source.Prices(ctx)
	if err != nil {
		log.Fatalf("read prices: %v", err)
	}
	details, err := source.Details(ctx)
	if err != nil {
		log.Fatalf("read details: %v", err)
	}

	issues := 0

	seen := map[string]bool{}
	for _, item := range items {
		code := catalog.NormalizeCode(string(item.Code))
		if seen[code] {
			fmt.Printf("duplicate code in price dataset: %s\n", code)
			issues++
			continue
		}
		seen[code] = true

		if _, ok := details[code]; !ok && *detailsPath != "" {
			fmt.Printf("no handling details for %s (%s)\n", code, item.Name)
			issues++
		}
		for _, variant := range []pricing.Variant{pricing.VariantPrivate, pricing.VariantTourist} {
			if item.Price.Amount(variant) <= 0 {
				fmt.Printf("missing %s price for %s (%s)\n", variant, code, item.Name)
				issues++
			}
		}
	}

	for code := range details {
		if !seen[catalog.NormalizeCode(code)] {
			fmt.Printf("details entry without a priced test: %s\n", code)
			issues++
		}
	}

	fmt.Printf("issues found: %d\n", issues)
	if issues > 0 && *strict {
		os.Exit(1)
	}
}
