package main

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/murat7074/elisishop/infra/config"
	"github.com/murat7074/elisishop/store"
)

// sampleProducts loads a small handmade-goods catalog with per-color stock
var sampleProducts = []store.Product{
	{
		Name:  "El Örgüsü Çanta",
		Stock: 12,
		Colors: []store.ColorVariant{
			{Color: "Kırmızı", Stock: 5},
			{Color: "Mavi", Stock: 4},
			{Color: "Bej", Stock: 3},
		},
	},
	{
		Name:  "Bebek Patiği",
		Stock: 20,
		Colors: []store.ColorVariant{
			{Color: "Pembe", Stock: 10},
			{Color: "Beyaz", Stock: 10},
		},
	},
	{
		Name:  "Örgü Atkı",
		Stock: 8,
		Colors: []store.ColorVariant{
			{Color: "Gri", Stock: 8},
		},
	},
	{
		Name:  "Dantel Masa Örtüsü",
		Stock: 6,
		Colors: []store.ColorVariant{
			{Color: "Beyaz", Stock: 4},
			{Color: "Krem", Stock: 2},
		},
	},
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.GetAppConfig()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for _, p := range sampleProducts {
		p.ID = uuid.New().String()
		for i := range p.Colors {
			p.Colors[i].ColorID = uuid.New().String()
		}
		if err := st.SaveProduct(ctx, &p); err != nil {
			log.Fatalf("Failed to seed product %q: %v", p.Name, err)
		}
		log.Printf("Seeded product %q with %d color variants", p.Name, len(p.Colors))
	}

	log.Println("Products are added")
}
