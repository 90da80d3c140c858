package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nazeru/storefront-go/internal/identity"
	"github.com/nazeru/storefront-go/pkg/logging"
)

type cfg struct {
	Environment      string `envconfig:"ENVIRONMENT" default:"development"`
	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	AdminEmail       string `envconfig:"SEED_ADMIN_EMAIL" default:"admin@ramenshop.com"`
	AdminPassword    string `envconfig:"SEED_ADMIN_PASSWORD" default:"admin123"`
	CustomerEmail    string `envconfig:"SEED_CUSTOMER_EMAIL" default:"customer@test.com"`
	CustomerPassword string `envconfig:"SEED_CUSTOMER_PASSWORD" default:"customer123"`
}

type seedProduct struct {
	name        string
	description string
	price       string
	image       string
	category    string
	stock       int
	featured    bool
}

var sampleProducts = []seedProduct{
	{
		name:        "Shin Ramyun Spicy",
		description: "Authentic Korean spicy ramen with rich beef flavor and vegetables. A perfect blend of spicy gochugaru and savory broth.",
		price:       "2.99",
		image:       "https://images.unsplash.com/photo-1569718212165-3a8278d5f624?w=400&h=300&fit=crop",
		category:    "Korean",
		stock:       50,
		featured:    true,
	},
	{
		name:        "Tonkotsu Ramen Premium",
		description: "Rich pork bone broth ramen with authentic Japanese flavors. Creamy, hearty, and incredibly satisfying.",
		price:       "3.49",
		image:       "https://images.unsplash.com/photo-1555126634-323283e090fa?w=400&h=300&fit=crop",
		category:    "Japanese",
		stock:       30,
		featured:    true,
	},
	{
		name:        "Miso Ramen Classic",
		description: "Traditional miso-based ramen with corn and green onions. A comforting bowl of umami goodness.",
		price:       "2.89",
		image:       "https://images.unsplash.com/photo-1617093727343-374698b1b08d?w=400&h=300&fit=crop",
		category:    "Japanese",
		stock:       40,
	},
	{
		name:        "Thai Tom Yum",
		description: "Spicy and sour Thai-style instant noodles with lemongrass, lime leaves, and aromatic herbs.",
		price:       "2.79",
		image:       "https://images.unsplash.com/photo-1569718212165-3a8278d5f624?w=400&h=300&fit=crop",
		category:    "Thai",
		stock:       25,
		featured:    true,
	},
	{
		name:        "Shoyu Ramen Traditional",
		description: "Light soy sauce-based broth with a delicate flavor profile. Perfect for those who prefer subtle tastes.",
		price:       "2.69",
		image:       "https://images.unsplash.com/photo-1555126634-323283e090fa?w=400&h=300&fit=crop",
		category:    "Japanese",
		stock:       35,
	},
	{
		name:        "Kimchi Ramen Fusion",
		description: "Spicy Korean kimchi ramen with fermented vegetables and a tangy, spicy kick.",
		price:       "3.19",
		image:       "https://images.unsplash.com/photo-1569718212165-3a8278d5f624?w=400&h=300&fit=crop",
		category:    "Korean",
		stock:       28,
		featured:    true,
	},
	{
		name:        "Beef Pho Inspired",
		description: "Vietnamese-inspired beef noodle soup with aromatic herbs and spices.",
		price:       "3.29",
		image:       "https://images.unsplash.com/photo-1555126634-323283e090fa?w=400&h=300&fit=crop",
		category:    "Vietnamese",
		stock:       22,
	},
	{
		name:        "Vegetarian Miso",
		description: "Plant-based miso ramen with tofu and vegetables. Delicious and cruelty-free.",
		price:       "2.99",
		image:       "https://images.unsplash.com/photo-1617093727343-374698b1b08d?w=400&h=300&fit=crop",
		category:    "Vegetarian",
		stock:       45,
	},
}

func main() {
	var c cfg
	if err := envconfig.Process("", &c); err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logging.New(c.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()

	for _, p := range sampleProducts {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			log.Fatalf("bad seed price %q: %v", p.price, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO products (name, description, price, image, category, stock, featured)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)`,
			p.name, p.description, price, p.image, p.category, p.stock, p.featured)
		if err != nil {
			log.Fatalf("seed product %q: %v", p.name, err)
		}
	}
	log.WithField("count", len(sampleProducts)).Info("products seeded")

	if err := seedUser(ctx, pool, c.AdminEmail, c.AdminPassword, "Ramen Admin", identity.RoleAdmin); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if err := seedUser(ctx, pool, c.CustomerEmail, c.CustomerPassword, "Test Customer", identity.RoleCustomer); err != nil {
		log.Fatalf("seed customer: %v", err)
	}
	log.Info("seed complete")
}

func seedUser(ctx context.Context, pool *pgxpool.Pool, email, password, name string, role identity.Role) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, lower($2), $3, $4, $5)
		ON CONFLICT (email) DO NOTHING`,
		uuid.New(), email, string(hash), name, string(role))
	return err
}
