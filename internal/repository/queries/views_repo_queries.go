package queries

const (
	QueryCreateViewsTable = `
		CREATE TABLE IF NOT EXISTS product_views (
			product_id     TEXT PRIMARY KEY,
			vendor_id      TEXT NOT NULL,
			views          BIGINT NOT NULL DEFAULT 0,
			last_viewed_at TIMESTAMPTZ NOT NULL
		);
	`
	QueryIncrementView = `
		INSERT INTO product_views (product_id, vendor_id, views, last_viewed_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (product_id) DO UPDATE
		SET views = product_views.views + 1,
		    vendor_id = EXCLUDED.vendor_id,
		    last_viewed_at = GREATEST(product_views.last_viewed_at, EXCLUDED.last_viewed_at);
	`
)
