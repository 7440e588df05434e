package store

// schemaStatements is the full relational schema, applied idempotently
// on open. JSON columns carry arrays and embedded records; tile_cache
// is declared up front rather than bolted on by a runtime migration.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS worlds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		seed TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		tile_cache BLOB,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS regions (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		biome TEXT NOT NULL,
		x INTEGER NOT NULL, y INTEGER NOT NULL,
		width INTEGER NOT NULL, height INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tiles (
		world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		x INTEGER NOT NULL, y INTEGER NOT NULL,
		terrain TEXT NOT NULL,
		elevation REAL NOT NULL DEFAULT 0,
		moisture REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (world_id, x, y)
	)`,
	`CREATE TABLE IF NOT EXISTS structures (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		x INTEGER NOT NULL, y INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rivers (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		points TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS characters (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		stats TEXT NOT NULL,
		hp INTEGER NOT NULL,
		max_hp INTEGER NOT NULL,
		ac INTEGER NOT NULL,
		level INTEGER NOT NULL DEFAULT 1,
		hit_die INTEGER NOT NULL DEFAULT 8,
		faction_id TEXT,
		behavior TEXT,
		character_type TEXT NOT NULL DEFAULT 'npc',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 0,
		value INTEGER NOT NULL DEFAULT 0,
		properties TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL,
		equipped INTEGER NOT NULL DEFAULT 0,
		slot TEXT,
		PRIMARY KEY (character_id, item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_item ON inventory_items(item_id)`,
	`CREATE TABLE IF NOT EXISTS encounters (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		tokens TEXT NOT NULL,
		round INTEGER NOT NULL,
		current_turn_index INTEGER NOT NULL,
		active_token_id TEXT,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS battlefield (
		encounter_id TEXT PRIMARY KEY REFERENCES encounters(id) ON DELETE CASCADE,
		obstacles TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quests (
		id TEXT PRIMARY KEY,
		world_id TEXT,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		objectives TEXT NOT NULL,
		rewards TEXT NOT NULL,
		prerequisites TEXT NOT NULL,
		giver TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quest_logs (
		character_id TEXT PRIMARY KEY REFERENCES characters(id) ON DELETE CASCADE,
		active_quests TEXT NOT NULL,
		completed_quests TEXT NOT NULL,
		failed_quests TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS patches (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		ops TEXT NOT NULL,
		applied INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		actor_id TEXT,
		target_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		payload TEXT,
		timestamp DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS calculations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		seed TEXT NOT NULL,
		expression TEXT NOT NULL,
		result INTEGER NOT NULL,
		rolls TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS turn_state (
		world_id TEXT PRIMARY KEY REFERENCES worlds(id) ON DELETE CASCADE,
		day INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS synthesized_spells (
		id TEXT PRIMARY KEY,
		character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		level INTEGER NOT NULL,
		school TEXT NOT NULL,
		effect_type TEXT NOT NULL,
		effect_dice TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS theft_records (
		item_id TEXT PRIMARY KEY,
		stolen_from TEXT NOT NULL,
		stolen_by TEXT NOT NULL,
		stolen_location TEXT,
		witnesses TEXT NOT NULL,
		heat_level TEXT NOT NULL,
		reported INTEGER NOT NULL DEFAULT 0,
		bounty INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fences (
		npc_id TEXT PRIMARY KEY,
		faction_id TEXT,
		buy_rate REAL NOT NULL,
		max_heat_level TEXT NOT NULL,
		daily_heat_capacity INTEGER NOT NULL,
		daily_heat_used INTEGER NOT NULL DEFAULT 0,
		specializations TEXT NOT NULL,
		cooldown_days INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS fence_sales (
		item_id TEXT NOT NULL,
		fence_id TEXT NOT NULL REFERENCES fences(npc_id) ON DELETE CASCADE,
		seller_id TEXT NOT NULL,
		price INTEGER NOT NULL,
		sold_on_day INTEGER NOT NULL,
		PRIMARY KEY (item_id, fence_id)
	)`,
	`CREATE TABLE IF NOT EXISTS custom_effects (
		id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		source_type TEXT,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		power_level INTEGER NOT NULL,
		mechanics TEXT NOT NULL,
		duration_type TEXT NOT NULL,
		duration_value INTEGER NOT NULL DEFAULT 0,
		triggers TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_effects_target ON custom_effects(target_id, is_active)`,
}
