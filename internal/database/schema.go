package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS stands (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name TEXT NOT NULL,
    location TEXT,
    description TEXT,
    operating_hours TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS stand_stock (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    stand_id UUID NOT NULL REFERENCES stands(id) ON DELETE CASCADE,
    product_variant_id UUID NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (stand_id, product_variant_id)
);

CREATE TABLE IF NOT EXISTS orders (
    id UUID PRIMARY KEY,
    user_id UUID,
    customer_name TEXT NOT NULL,
    customer_email TEXT NOT NULL,
    qr_code TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL CHECK (status IN ('waiting_payment','pending','delivered','cancelled','returned')),
    payment_method TEXT NOT NULL CHECK (payment_method IN ('card','cash')),
    payment_validated BOOLEAN NOT NULL DEFAULT FALSE,
    total_amount NUMERIC(12,2) NOT NULL CHECK (total_amount >= 0),
    sale_type TEXT NOT NULL DEFAULT 'online',
    stand_id UUID NOT NULL REFERENCES stands(id),
    delivered_by_stand_id UUID REFERENCES stands(id),
    delivery_timestamp TIMESTAMPTZ,
    return_reason TEXT,
    return_timestamp TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_items (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_variant_id UUID NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    unit_price NUMERIC(12,2) NOT NULL CHECK (unit_price >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
    status TEXT NOT NULL,
    payment_url TEXT,
    payment_id TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payment_links (
    token TEXT PRIMARY KEY,
    order_id UUID REFERENCES orders(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS unmatched_payments (
    payment_id TEXT PRIMARY KEY,
    reason TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    resolved_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_status_method ON orders(status, payment_method, created_at);
CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

CREATE OR REPLACE FUNCTION notify_order_change() RETURNS trigger AS $$
DECLARE
    rec RECORD;
    oid UUID;
    uid UUID;
BEGIN
    IF TG_OP = 'DELETE' THEN
        rec := OLD;
    ELSE
        rec := NEW;
    END IF;

    IF TG_TABLE_NAME = 'orders' THEN
        oid := rec.id;
        uid := rec.user_id;
    ELSE
        oid := rec.order_id;
        SELECT user_id INTO uid FROM orders WHERE id = oid;
    END IF;

    PERFORM pg_notify(TG_ARGV[0], json_build_object(
        'table', TG_TABLE_NAME,
        'op', TG_OP,
        'order_id', oid,
        'user_id', uid
    )::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;
`

var notifyTables = []string{"orders", "order_items", "transactions"}

// InitSchema creates tables and the change-notification triggers that feed
// channel.
func InitSchema(ctx context.Context, db *sql.DB, channel string) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	for _, table := range notifyTables {
		stmt := fmt.Sprintf(`
DROP TRIGGER IF EXISTS %[1]s_notify ON %[1]s;
CREATE TRIGGER %[1]s_notify AFTER INSERT OR UPDATE OR DELETE ON %[1]s
    FOR EACH ROW EXECUTE FUNCTION notify_order_change('%[2]s');`, table, channel)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to install trigger on %s: %w", table, err)
		}
	}
	return nil
}
