// Command seed prepares a self-hosted database for the postgres
// gateway: schema, the landing content singleton, and optionally a few
// sample listings.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/ubika-app/directory-core/internal/directory/domain"
)

const schema = `
create extension if not exists pgcrypto;

create table if not exists auth_users (
    id            uuid primary key default gen_random_uuid(),
    email         text not null unique,
    password_hash text not null,
    full_name     text,
    created_at    timestamptz not null default now()
);

create table if not exists profiles (
    id          uuid primary key,
    email       text not null,
    full_name   text,
    business_id uuid,
    role        text not null default 'CLIENT',
    created_at  timestamptz not null default now()
);

create table if not exists businesses (
    id              uuid primary key default gen_random_uuid(),
    owner_id        uuid not null,
    name            text not null,
    category        text not null,
    description     text not null default '',
    image_url       text,
    whatsapp        text,
    location        text,
    website         text,
    instagram       text,
    facebook        text,
    status          text not null default 'PENDING',
    likes           integer not null default 0,
    created_at      timestamptz not null default now(),
    plan            text not null default 'FREE',
    plan_expires_at timestamptz,
    admin_note      text
);

create table if not exists business_likes (
    user_id     uuid not null,
    business_id uuid not null references businesses(id) on delete cascade,
    created_at  timestamptz not null default now(),
    primary key (user_id, business_id)
);

create table if not exists landing_content (
    id         integer primary key,
    content    jsonb not null,
    updated_at timestamptz not null default now()
);

create index if not exists idx_businesses_status on businesses(status);
create index if not exists idx_businesses_owner on businesses(owner_id);
`

func main() {
	var (
		dsn    = flag.String("dsn", "", "database DSN (defaults to DB_DSN)")
		sample = flag.Bool("sample", false, "insert sample listings")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	if *dsn == "" {
		*dsn = os.Getenv("DB_DSN")
	}
	if *dsn == "" {
		log.Fatal("no DSN: pass -dsn or set DB_DSN")
	}

	db, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")

	if err := seedLanding(db); err != nil {
		log.Fatalf("seed landing content: %v", err)
	}
	log.Println("landing content seeded")

	if *sample {
		if err := seedSample(db); err != nil {
			log.Fatalf("seed sample listings: %v", err)
		}
		log.Println("sample listings seeded")
	}
}

// seedLanding writes the default content only when the singleton row is
// missing, so re-running the seeder never clobbers admin edits.
func seedLanding(db *sql.DB) error {
	raw, err := json.Marshal(domain.DefaultLandingContent())
	if err != nil {
		return err
	}
	_, err = db.Exec(`
insert into landing_content (id, content) values (1, $1)
on conflict (id) do nothing;
`, raw)
	return err
}

func seedSample(db *sql.DB) error {
	_, err := db.Exec(`
insert into businesses (owner_id, name, category, description, whatsapp, location, status, plan, likes)
values
  (gen_random_uuid(), 'Cafetería Aurora', 'Gastronomía',
   'Café de especialidad y repostería artesanal.', '+5491100000001', 'Palermo, Buenos Aires', 'APPROVED', 'PRO', 12),
  (gen_random_uuid(), 'Taller Norte', 'Servicios',
   'Mecánica integral y gomería.', '+5491100000002', 'San Martín, Buenos Aires', 'APPROVED', 'FREE', 4),
  (gen_random_uuid(), 'Verde Vivo', 'Hogar y Jardín',
   'Vivero con envíos a domicilio.', '+5491100000003', 'Villa Urquiza, Buenos Aires', 'PENDING', 'FREE', 0)
on conflict do nothing;
`)
	return err
}
