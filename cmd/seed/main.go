package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/facturalink/dte-backend/config"
	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/db"
	"github.com/facturalink/dte-backend/pkg/util"
	"github.com/xuri/excelize/v2"
)

// Imports tenants from an XLSX sheet with the columns
// name | nit | nrc | email | api_secret.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	tenantRepo := repository.NewTenantRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	tenants, err := readTenantsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total tenants to import: %d\n", len(tenants))

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	imported := 0
	for i := range tenants {
		if err := tenantRepo.Create(&tenants[i]); err != nil {
			fmt.Printf("Skipping tenant %s: %v\n", tenants[i].NIT, err)
			continue
		}
		imported++
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total tenants imported: %d\n", imported)
}

func readTenantsFromXLSX(filePath string) ([]model.Tenant, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	var tenants []model.Tenant
	seen := make(map[string]bool)
	skipped := 0

	for i, row := range rows {
		// First row is the header.
		if i == 0 {
			continue
		}
		if len(row) < 5 {
			skipped++
			continue
		}

		name := strings.TrimSpace(row[0])
		nit := strings.TrimSpace(row[1])
		nrc := strings.TrimSpace(row[2])
		email := strings.TrimSpace(row[3])
		secret := strings.TrimSpace(row[4])

		if name == "" || nit == "" || email == "" || secret == "" {
			skipped++
			continue
		}
		if seen[nit] {
			skipped++
			continue
		}
		seen[nit] = true

		hash, err := util.HashPassword(secret)
		if err != nil {
			return nil, fmt.Errorf("failed to hash API secret for %s: %w", nit, err)
		}

		tenants = append(tenants, model.Tenant{
			Name:          name,
			NIT:           nit,
			NRC:           nrc,
			Email:         email,
			APISecretHash: hash,
			Active:        true,
		})
	}

	if skipped > 0 {
		fmt.Printf("Skipped %d invalid or duplicate rows\n", skipped)
	}
	return tenants, nil
}
