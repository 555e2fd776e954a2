package store

// 幂等迁移：语句全部 IF NOT EXISTS，可在每次启动时重放。
// 改表只追加新语句，不改历史语句。
var historyMigrations = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol          TEXT NOT NULL,
		timeframe       TEXT NOT NULL,
		overall_score   REAL NOT NULL,
		signal          TEXT NOT NULL,
		confluence      TEXT NOT NULL,
		layers_passed   INTEGER NOT NULL,
		risk_level      TEXT NOT NULL,
		recommendation  TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		created_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_symbol_ts ON analyses(symbol, timestamp)`,

	`CREATE TABLE IF NOT EXISTS pressure_points (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol             TEXT NOT NULL,
		timeframe          TEXT NOT NULL,
		buy_pressure       REAL NOT NULL,
		sell_pressure      REAL NOT NULL,
		price              REAL NOT NULL,
		volume             REAL NOT NULL,
		manipulation_level REAL,
		absorption_price   REAL,
		timestamp          INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pressure_symbol_ts ON pressure_points(symbol, timeframe, timestamp)`,
}

func (s *HistoryStore) migrate() error {
	for _, q := range historyMigrations {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
